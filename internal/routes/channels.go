package routes

import (
	"errors"
	"net/http"

	"github.com/gregriff/vogo/relay/internal/registry"
	"github.com/gregriff/vogo/relay/internal/schemas"
	"github.com/gregriff/vogo/relay/internal/validation"
)

// ListChannels returns every channel with its live occupants.
func (h *RouteHandler) ListChannels(w http.ResponseWriter, req *http.Request) {
	WriteJSON(w, http.StatusOK, h.hub.Snapshot())
}

func (h *RouteHandler) GetChannel(w http.ResponseWriter, req *http.Request) {
	ch, ok := h.registry.Get(req.PathValue("id"))
	if !ok {
		WriteError(w, http.StatusNotFound, CodeChannelNotFound, "channel not found")
		return
	}
	WriteJSON(w, http.StatusOK, h.hub.View(ch))
}

// CreateChannel adds a channel and pushes the new state to every connection.
func (h *RouteHandler) CreateChannel(w http.ResponseWriter, req *http.Request) {
	data := schemas.CreateChannelRequest{}
	if err := decodeBody(w, req, &data); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if err := validation.CheckCreateChannel(data); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	ch, err := h.registry.Create(req.Context(), registry.CreateParams{
		Name:     data.Name,
		MaxUsers: data.MaxUsers,
		Password: data.Password,
	})
	switch {
	case errors.Is(err, registry.ErrNameRequired):
		WriteError(w, http.StatusBadRequest, CodeNameRequired, "name is required")
		return
	case err != nil:
		h.log.Error("error creating channel", "error", err)
		WriteError(w, http.StatusInternalServerError, CodeInternal, "error creating channel")
		return
	}

	h.hub.ChannelsChanged()
	WriteJSON(w, http.StatusCreated, h.hub.View(ch))
}

// UpdateChannel applies the fields present in the body to an existing channel.
func (h *RouteHandler) UpdateChannel(w http.ResponseWriter, req *http.Request) {
	data := schemas.UpdateChannelRequest{}
	if err := decodeBody(w, req, &data); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}
	if err := validation.CheckUpdateChannel(data); err != nil {
		WriteError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return
	}

	ch, err := h.registry.Update(req.Context(), req.PathValue("id"), registry.Patch{
		Name:     data.Name,
		MaxUsers: data.MaxUsers,
		Password: data.Password,
	})
	switch {
	case errors.Is(err, registry.ErrChannelNotFound):
		WriteError(w, http.StatusNotFound, CodeChannelNotFound, "channel not found")
		return
	case err != nil:
		h.log.Error("error updating channel", "id", req.PathValue("id"), "error", err)
		WriteError(w, http.StatusInternalServerError, CodeInternal, "error updating channel")
		return
	}

	h.hub.ChannelsChanged()
	WriteJSON(w, http.StatusOK, h.hub.View(ch))
}
