package docjson

import "encoding/json"

type fileJSON struct {
	Version  int                     `json:"version"`
	Main     string                  `json:"main"`
	Networks map[string]*networkJSON `json:"networks"`
}

type networkJSON struct {
	Inputs  []inputDeclJSON `json:"inputs,omitempty"`
	Nodes   []*nodeJSON     `json:"nodes"`
	Exports []exportJSON    `json:"exports"`
}

type inputDeclJSON struct {
	Name string          `json:"name"`
	Type json.RawMessage `json:"type"`
}

type nodeJSON struct {
	ID       string            `json:"id"`
	Op       string            `json:"op,omitempty"`
	Network  string            `json:"network,omitempty"`
	Inputs   []inputJSON       `json:"inputs,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// inputJSON has exactly one of its fields set.
type inputJSON struct {
	Value        *valueJSON `json:"value,omitempty"`
	Node         string     `json:"node,omitempty"`
	Output       int        `json:"output,omitempty"`
	NetworkInput *int       `json:"network_input,omitempty"`
}

type valueJSON struct {
	Type  json.RawMessage `json:"type"`
	Value json.RawMessage `json:"value"`
}

type exportJSON struct {
	Node   string `json:"node"`
	Output int    `json:"output,omitempty"`
}
