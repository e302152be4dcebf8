package models

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Question string `json:"question" binding:"required"`
}

// ChatResponse carries the model's answer plus the grounding context shown in
// the frontend source panel (empty when the answer used no grounding).
type ChatResponse struct {
	Response      string `json:"response"`
	SourceContext string `json:"source_context"`
}

// UploadResponse is the POST /upload success body.
type UploadResponse struct {
	Message   string   `json:"message"`
	Filenames []string `json:"filenames"`
}
