package mcp

// --- Tool Arguments ---

type GetArgs struct {
	Key string `json:"key" jsonschema:"The key to look up"`
}

type GetResult struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Found bool   `json:"found"`
}

type SetArgs struct {
	Key   string `json:"key" jsonschema:"The key to write"`
	Value string `json:"value" jsonschema:"The value to store. Replaces any previous value"`
}

type SetResult struct {
	Status string `json:"status"`
}

type ListKeysArgs struct{}

type ListKeysResult struct {
	Keys  []string `json:"keys"`
	Count int      `json:"count"`
}
