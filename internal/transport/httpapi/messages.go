package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/parley"
)

// SendRequest is the body of POST /rooms/{ref}/messages.
type SendRequest struct {
	Content string          `json:"content"`
	ReplyTo *chat.MessageID `json:"reply_to,omitempty"`
	IsMedia bool            `json:"is_media,omitempty"`
}

type editRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[SendRequest](w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg, err := s.app.Messages.Send(r.Context(), parley.SendInput{
		Room:    roomRef(r),
		Sender:  accountFrom(r.Context()).ID,
		Content: body.Content,
		ReplyTo: body.ReplyTo,
		IsMedia: body.IsMedia,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var errs criterio.FieldErrorsBuilder
	offset, err := queryInt(q.Get("offset"))
	if err != nil {
		errs = errs.Append("offset", err)
	}
	count, err := queryInt(q.Get("count"))
	if err != nil {
		errs = errs.Append("count", err)
	}
	if err := errs.ToError(); err != nil {
		s.writeError(w, r, chat.Invalid(err))
		return
	}

	msgs, err := s.app.Messages.History(r.Context(), roomRef(r), accountFrom(r.Context()).ID, offset, count)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := decodeBody[editRequest](w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg, err := s.app.Messages.Edit(r.Context(), chat.MessageID(id), accountFrom(r.Context()).ID, body.Content)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.app.Messages.Delete(r.Context(), chat.MessageID(id), accountFrom(r.Context()).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return n, nil
}
