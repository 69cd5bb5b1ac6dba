package httpapi

import (
	"net/http"

	"github.com/colonyops/parley/internal/core/chat"
	"github.com/colonyops/parley/internal/data/stores"
	"github.com/colonyops/parley/internal/parley"
)

type createRoomRequest struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	About string `json:"about"`
}

type updateRoomRequest struct {
	Title *string `json:"title"`
	About *string `json:"about"`
}

func roomRef(r *http.Request) chat.RoomRef {
	return chat.ParseRoomRef(r.PathValue("ref"))
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[createRoomRequest](w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	room, err := s.app.Rooms.Create(r.Context(), parley.CreateInput{
		Name:  body.Name,
		Title: body.Title,
		About: body.About,
		Owner: accountFrom(r.Context()).ID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.app.Rooms.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleMyRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.app.Rooms.ForAccount(r.Context(), accountFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.app.Rooms.Get(r.Context(), roomRef(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	body, err := decodeBody[updateRoomRequest](w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	room, err := s.app.Rooms.Update(r.Context(), roomRef(r), accountFrom(r.Context()).ID, stores.RoomUpdate{
		Title: body.Title,
		About: body.About,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Rooms.Delete(r.Context(), roomRef(r), accountFrom(r.Context()).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.app.Rooms.Join(r.Context(), roomRef(r), accountFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Rooms.Leave(r.Context(), roomRef(r), accountFrom(r.Context()).ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.app.Rooms.Members(r.Context(), roomRef(r), accountFrom(r.Context()).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}
