package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SystemInstruction is prepended to every prompt.
const SystemInstruction = "You are a helpful, knowledgeable, and professional AI assistant. " +
	"Provide clear, accurate, and well-structured responses. " +
	"Use proper formatting with headings, lists, and examples when helpful. " +
	"Never use asterisks (*) for formatting. Use dashes (-) for bullet points. " +
	"Be comprehensive but concise, and always aim for clarity and helpfulness."

const imageInstructions = "Please analyze this image and provide:\n\n" +
	"1. A brief overview of what you see\n" +
	"2. Key details about the main subjects or objects\n" +
	"3. Information about colors, composition, and setting\n" +
	"4. Any text or important details you notice\n" +
	"5. Notable features, patterns, or technical aspects\n\n" +
	"Please organize your response clearly."

const fileInstructions = "Please help me understand this file by providing:\n\n" +
	"1. What type of file this is and its main purpose\n" +
	"2. Key components, functions, or sections\n" +
	"3. How it's structured and organized\n" +
	"4. Any notable features or important aspects\n" +
	"5. If it's code, any observations about quality or improvements\n\n" +
	"Please explain everything clearly."

// User-facing messages that replace a model answer.
const (
	MsgUnreadableFile = "Sorry, I couldn't read this file. It might be in a format I don't support."
	msgUnsupported    = "Sorry, I don't support files of type '%s'. I can analyze images and text files."
)

// ErrNotUTF8 is returned when an uploaded text file cannot be decoded.
var ErrNotUTF8 = errors.New("file content is not valid UTF-8")

// textExtensions route files with an unhelpful MIME type to text processing.
var textExtensions = []string{".txt", ".py", ".js", ".html", ".css", ".json", ".xml", ".csv"}

// FileKind tells how an upload is presented to the model.
type FileKind int

const (
	KindUnsupported FileKind = iota
	KindImage
	KindText
)

func (k FileKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindText:
		return "text"
	default:
		return "unsupported"
	}
}

// Classify picks the processing path for an upload from its declared MIME type,
// falling back to the filename extension for text files.
func Classify(mimeType, filename string) FileKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "text/"):
		return KindText
	}
	for _, ext := range textExtensions {
		if strings.HasSuffix(filename, ext) {
			return KindText
		}
	}
	return KindUnsupported
}

// UnsupportedMessage is the answer for uploads that are neither images nor text.
func UnsupportedMessage(mimeType string) string {
	return fmt.Sprintf(msgUnsupported, mimeType)
}

// TextPrompt assembles the prompt for a plain chat message.
func TextPrompt(history []Turn, message string) string {
	return SystemInstruction + BuildContext(history) + message + "\n\nAssistant:"
}

// ImagePrompt assembles the text that accompanies an uploaded image.
func ImagePrompt(history []Turn, message string) string {
	return SystemInstruction + BuildContext(history) + "\n\n" + orDefault(message, imageInstructions)
}

// FilePrompt assembles the prompt for an uploaded text file. Content that is not
// valid UTF-8 is rejected with ErrNotUTF8.
func FilePrompt(history []Turn, message, filename string, content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", ErrNotUTF8
	}

	var b strings.Builder
	b.WriteString(SystemInstruction)
	b.WriteString(BuildContext(history))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "I've uploaded a file called '%s'. Could you analyze it?\n\n", filename)
	b.WriteString("Here's the content:\n\n```\n")
	b.Write(content)
	b.WriteString("\n```\n\n")
	b.WriteString(orDefault(message, fileInstructions))

	return b.String(), nil
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
