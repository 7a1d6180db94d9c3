package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	safe "github.com/eminarican/safetypes"
	"github.com/pkg/errors"
	"github.com/tectiv3/gemini-web/llm"
	"github.com/tectiv3/gemini-web/pipeline"
	"github.com/tectiv3/gemini-web/types"
	"github.com/tectiv3/gemini-web/uploads"
)

const (
	msgNoMessage        = "No message provided"
	msgBodyTooLarge     = "Request body too large"
	msgFileTooLarge     = "File too large: limit is %d bytes"
	msgNoFile           = "No file selected"
	msgInvalidFileName  = "Invalid file name"
	msgSaveFailed       = "Failed to save file"
	msgUnavailable      = "AI model is not available."
	msgModelTimeout     = "The model did not respond in time."
	msgEmptyChat        = "I'm not sure how to respond to that."
	msgEmptyImage       = "I couldn't analyze this image."
	msgEmptyFile        = "I couldn't analyze this file."
	msgImageFailed      = "Sorry, I couldn't process this image. Error: %s"
	msgFileFailed       = "Sorry, I couldn't process this file. Error: %s"
	msgChatFailed       = "An error occurred: %s"
	defaultUploadMIME   = "application/octet-stream"
	multipartFormMemory = 32 << 20

	// room for the message and history fields next to the file
	multipartOverhead = 1 << 20
	maxChatBody       = 10 << 20
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		s.handleFileChat(w, r)
		return
	}
	s.handleTextChat(w, r)
}

func (s *Server) handleTextChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBody)

	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSONError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		s.writeJSONError(w, http.StatusBadRequest, msgNoMessage)
		return
	}
	if err := ValidateMessage(req.Message); err != nil {
		Log.WithField("error", err).Debug("rejected chat message")
		s.writeJSONError(w, http.StatusBadRequest, msgNoMessage)
		return
	}

	history, err := pipeline.ParseHistory(req.ConversationHistory)
	if err != nil {
		Log.WithField("error", err).Debug("ignoring conversation history")
	}

	prompt := pipeline.TextPrompt(history, req.Message)
	Log.WithField("history", len(pipeline.Window(history))).Debug(prompt)

	reply := llm.Invoke(r.Context(), s.model, llm.Prompt{Text: prompt}, s.conf.modelTimeout())
	Log.WithField("kind", reply.Kind.String()).Info("chat answer")

	switch reply.Kind {
	case llm.ReplyOK:
		s.writeJSON(w, http.StatusOK, types.ChatResponse{Response: pipeline.Format(reply.Text)})
	case llm.ReplyEmpty:
		s.writeJSON(w, http.StatusOK, types.ChatResponse{Response: msgEmptyChat})
	case llm.ReplyUnavailable:
		s.writeJSON(w, http.StatusOK, types.ChatResponse{Response: msgUnavailable})
	case llm.ReplyTimeout:
		Log.WithField("error", reply.Err).Warn("model timeout")
		s.writeJSONError(w, http.StatusGatewayTimeout, msgModelTimeout)
	default:
		Log.WithField("error", reply.Err).Error("model call failed")
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf(msgChatFailed, reply.Err))
	}
}

func (s *Server) handleFileChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.conf.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartFormMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf(msgFileTooLarge, s.conf.MaxUploadBytes))
			return
		}
		s.writeJSONError(w, http.StatusBadRequest, msgNoFile)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		s.writeJSONError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer file.Close()

	if err := ValidateFileSize(header.Size, s.conf.MaxUploadBytes); err != nil {
		Log.WithField("file", header.Filename).WithField("error", err).Debug("rejected upload")
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf(msgFileTooLarge, s.conf.MaxUploadBytes))
		return
	}

	name, err := uploads.CleanName(header.Filename)
	if err != nil {
		s.writeJSONError(w, http.StatusBadRequest, msgInvalidFileName)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		Log.WithField("file", name).WithField("error", err).Error("failed to read upload")
		s.writeJSONError(w, http.StatusInternalServerError, msgSaveFailed)
		return
	}

	upload := uploads.File{
		Name:     name,
		MIMEType: normalizeMIME(header.Header.Get("Content-Type")),
		Data:     data,
	}

	upload.Stored, err = s.store.Save(upload.Name, bytes.NewReader(data))
	if err != nil {
		Log.WithField("file", upload.Name).WithField("error", err).Error("failed to save upload")
		s.writeJSONError(w, http.StatusInternalServerError, msgSaveFailed)
		return
	}

	history := parseHistory(r.FormValue("conversation_history"))
	message := r.FormValue("message")

	kind := pipeline.Classify(upload.MIMEType, upload.Name)
	Log.WithField("file", upload.Stored).WithField("mime", upload.MIMEType).WithField("kind", kind.String()).Info("file received")

	var response string
	switch kind {
	case pipeline.KindImage:
		response = s.processImage(r.Context(), historyOrEmpty(history), message, upload)
	case pipeline.KindText:
		response = s.processTextFile(r.Context(), historyOrEmpty(history), message, upload)
	default:
		response = pipeline.UnsupportedMessage(upload.MIMEType)
	}

	s.writeJSON(w, http.StatusOK, types.FileChatResponse{
		Response: response,
		FileURL:  s.store.URL(upload.Stored),
		FileName: upload.Name,
		FileType: upload.MIMEType,
	})
}

func (s *Server) processImage(ctx context.Context, history []pipeline.Turn, message string, f uploads.File) string {
	prompt := llm.Prompt{
		Text:       pipeline.ImagePrompt(history, message),
		Attachment: &llm.Attachment{MIMEType: f.MIMEType, Data: f.Data},
	}

	reply := llm.Invoke(ctx, s.model, prompt, s.conf.modelTimeout())
	switch reply.Kind {
	case llm.ReplyOK:
		return pipeline.Format(reply.Text)
	case llm.ReplyEmpty:
		return msgEmptyImage
	case llm.ReplyUnavailable:
		return msgUnavailable
	default:
		Log.WithField("file", f.Stored).WithField("error", reply.Err).Error("image analysis failed")
		return fmt.Sprintf(msgImageFailed, reply.Err)
	}
}

func (s *Server) processTextFile(ctx context.Context, history []pipeline.Turn, message string, f uploads.File) string {
	text, err := pipeline.FilePrompt(history, message, f.Name, f.Data)
	if errors.Is(err, pipeline.ErrNotUTF8) {
		return pipeline.MsgUnreadableFile
	}
	if err != nil {
		return fmt.Sprintf(msgFileFailed, err)
	}

	reply := llm.Invoke(ctx, s.model, llm.Prompt{Text: text}, s.conf.modelTimeout())
	switch reply.Kind {
	case llm.ReplyOK:
		return pipeline.Format(reply.Text)
	case llm.ReplyEmpty:
		return msgEmptyFile
	case llm.ReplyUnavailable:
		return msgUnavailable
	default:
		Log.WithField("file", f.Stored).WithField("error", reply.Err).Error("file analysis failed")
		return fmt.Sprintf(msgFileFailed, reply.Err)
	}
}

// normalizeMIME lowercases a declared content type and drops its parameters.
func normalizeMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType, _, _ = strings.Cut(contentType, ";")
		mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	}
	if mediaType == "" {
		return defaultUploadMIME
	}
	return mediaType
}

// parseHistory decodes the conversation_history form field.
func parseHistory(raw string) safe.Result[[]pipeline.Turn] {
	history, err := pipeline.ParseHistory([]byte(raw))
	if err != nil {
		Log.WithField("error", err).Debug("ignoring conversation history")
		return safe.Err[[]pipeline.Turn](errors.Wrap(err, "conversation_history").Error())
	}
	return safe.AsResult[[]pipeline.Turn](history, nil)
}

func historyOrEmpty(history safe.Result[[]pipeline.Turn]) []pipeline.Turn {
	if history.IsErr() {
		return nil
	}
	return history.Unwrap()
}
