package server

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/KrzysztofStaron/graph-llm-backend/internal/translator"
)

const maxUploadBytes = 20 << 20

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(c echo.Context) error {
	var req translator.ChatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return requestError{Status: http.StatusBadRequest, Message: err.Error()}
	}

	clientID := c.Request().Header.Get("X-Client-ID")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	// The relay owns the response from here: headers, frames, terminal
	// marker. Nothing may be written to the connection after this call.
	s.relay.Serve(c.Request().Context(), c.Response(), req, clientID)
	return nil
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId,omitempty"`
}

func (s *Server) handleSynthesize(c echo.Context) error {
	var req synthesizeRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Text) == "" {
		return requestError{Status: http.StatusBadRequest, Message: "text must not be empty"}
	}

	audio, err := s.speech.Synthesize(c.Request().Context(), req.Text, req.VoiceID)
	if err != nil {
		slog.Error("speech synthesis failed", "error", err)
		return toHTTPError(err)
	}

	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

func (s *Server) handleTranscribe(c echo.Context) error {
	data, header, err := readFormFile(c, "file")
	if err != nil {
		return err
	}

	text, err := s.speech.Transcribe(c.Request().Context(), data, header.Filename)
	if err != nil {
		slog.Error("transcription failed", "error", err)
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleParseDocument(c echo.Context) error {
	data, header, err := readFormFile(c, "file")
	if err != nil {
		return err
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	text, err := s.parser.Parse(data, mimeType)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{
		"text":     text,
		"filename": header.Filename,
	})
}

func (s *Server) handleUploadImage(c echo.Context) error {
	data, header, err := readFormFile(c, "file")
	if err != nil {
		return err
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	object, err := s.store.Upload(c.Request().Context(), data, mimeType)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, object)
}

func (s *Server) handleDeleteImage(c echo.Context) error {
	key := c.Param("key")
	if err := s.store.Delete(c.Request().Context(), key); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func readFormFile(c echo.Context, field string) ([]byte, *multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil, requestError{
			Status:  http.StatusBadRequest,
			Message: fmt.Sprintf("multipart field %q is required", field),
		}
	}
	if header.Size > maxUploadBytes {
		return nil, nil, requestError{
			Status:  http.StatusRequestEntityTooLarge,
			Message: "uploaded file is too large",
		}
	}

	file, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("read uploaded file: %w", err)
	}
	return data, header, nil
}
