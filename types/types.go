package types

import "encoding/json"

// ChatRequest is the JSON body of POST /chat. The history stays raw so a
// malformed turn cannot fail the whole request.
type ChatRequest struct {
	Message             string          `json:"message"`
	ConversationHistory json.RawMessage `json:"conversation_history"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

// FileChatResponse answers a multipart POST /chat carrying a file.
type FileChatResponse struct {
	Response string `json:"response"`
	FileURL  string `json:"file_url"`
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
