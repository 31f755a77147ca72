package app

import (
	"github.com/specialistvlad/graphcraft/internal/registry"
	"github.com/specialistvlad/graphcraft/modules/core"
	"github.com/specialistvlad/graphcraft/modules/env_vars"
	"github.com/specialistvlad/graphcraft/modules/http_client"
	"github.com/specialistvlad/graphcraft/modules/math"
	"github.com/specialistvlad/graphcraft/modules/print"
	"github.com/specialistvlad/graphcraft/modules/raster"
	"github.com/specialistvlad/graphcraft/modules/s3"
	"github.com/specialistvlad/graphcraft/modules/socketio"
	"github.com/specialistvlad/graphcraft/modules/text"
)

// CoreModules returns the definitive list of all modules that are compiled
// into the binary. Modules with state are created fresh on every call.
func CoreModules() []registry.Module {
	return []registry.Module{
		&core.Module{},
		&math.Module{},
		&text.Module{},
		&raster.Module{},
		&print.Module{},
		&env_vars.Module{},
		&http_client.Module{},
		&socketio.Module{},
		&s3.Module{},
	}
}
