package openai

// ModelsResponse is the list envelope served by /v1/models.
type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// Model describes one entry of the model list. The gateway publishes its
// known-model set here so OpenAI clients that probe /v1/models before
// chatting see a non-empty catalogue.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// NewModelsResponse wraps models in the list envelope.
func NewModelsResponse(models []Model) ModelsResponse {
	return ModelsResponse{
		Object: "list",
		Data:   models,
	}
}

// NewModel builds a list entry for one model id.
func NewModel(id, ownedBy string, created int64) Model {
	return Model{
		ID:      id,
		Object:  "model",
		Created: created,
		OwnedBy: ownedBy,
	}
}
