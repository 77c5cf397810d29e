package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// JSONHandler implements IOHandler over JSON lines: one Frame object per
// output line. Each input line is a Move object, a JSON string, or raw text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(_ context.Context, frame *Frame) error {
	return h.Encoder.Encode(frame)
}

// Input reads one line. A Move object becomes the matching runner command
// or its answer, a JSON string is unquoted, and anything else is verbatim.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") {
		var move Move
		if err := json.Unmarshal([]byte(text), &move); err == nil {
			return moveLine(move), nil
		}
	}

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		return val, nil
	}
	return text, nil
}

func moveLine(m Move) string {
	switch {
	case m.Back:
		return ":back"
	case m.Target != "":
		return ":goto " + m.Target
	case m.Answer != nil:
		return *m.Answer
	default:
		return ""
	}
}

func (h *JSONHandler) SystemOutput(_ context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"system": msg})
}
