package httpadapter

import (
	"context"
	"net/http"

	"antygravity/internal/domain"
)

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	devices, err := s.network.Devices(ctx, UserID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		out = append(out, toDeviceResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	s.deviceAction(w, r, s.network.Device)
}

func (s *Server) markTrusted(w http.ResponseWriter, r *http.Request) {
	s.deviceAction(w, r, s.network.MarkTrusted)
}

func (s *Server) markBlocked(w http.ResponseWriter, r *http.Request) {
	s.deviceAction(w, r, s.network.MarkBlocked)
}

func (s *Server) unmark(w http.ResponseWriter, r *http.Request) {
	s.deviceAction(w, r, s.network.Unmark)
}

// deviceAction runs fn for the {id} device of the caller and writes the result.
func (s *Server) deviceAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, ownerID, id string) (domain.Device, error)) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	d, err := fn(ctx, UserID(ctx), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceResponse(d))
}

func (s *Server) patchDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req devicePatchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	d, err := s.network.UpdateDevice(ctx, UserID(ctx), id, domain.DevicePatch{
		Name:       req.Name,
		DeviceType: req.DeviceType,
		IsTrusted:  req.IsTrusted,
		IsBlocked:  req.IsBlocked,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeviceResponse(d))
}

func (s *Server) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	if err := s.network.DeleteDevice(ctx, UserID(ctx), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logs, err := s.network.Scans(ctx, UserID(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]scanResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, toScanResponse(l))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) postScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	l, err := s.network.IngestScan(ctx, UserID(ctx), req.NetworkSSID, req.NetworkBSSID, req.Devices)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScanResponse(l))
}
