// Package httpapi exposes trend logs over HTTP: listing, property access and
// ReadRange queries.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ghalamif/TrendFlow/internal/bacnet"
	"github.com/ghalamif/TrendFlow/internal/domain"
	"github.com/ghalamif/TrendFlow/internal/trendlog"
)

type Server struct {
	reg *trendlog.Registry
}

func New(reg *trendlog.Registry) *Server {
	return &Server{reg: reg}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/logs", s.listLogs)
	mux.HandleFunc("GET /api/logs/{id}/properties/{name}", s.readProperty)
	mux.HandleFunc("PUT /api/logs/{id}/properties/{name}", s.writeProperty)
	mux.HandleFunc("GET /api/logs/{id}/range", s.readRange)
}

// Handler returns a mux serving only the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

type errorBody struct {
	Error      string `json:"error"`
	ErrorClass string `json:"error_class,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}

// writeError maps registry errors: unknown logs are 404, protocol
// rejections 400 with their class and code.
func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, trendlog.ErrUnknownLog) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		return
	}
	var be *bacnet.Error
	if errors.As(err, &be) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:      err.Error(),
			ErrorClass: be.Class.String(),
			ErrorCode:  be.Code.String(),
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

func pathInstance(r *http.Request) (uint32, error) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad log id %q", r.PathValue("id"))
	}
	return uint32(n), nil
}

func (s *Server) listLogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.Stats())
}

type propertyBody struct {
	Property string `json:"property"`
	Value    any    `json:"value"`
}

func (s *Server) readProperty(w http.ResponseWriter, r *http.Request) {
	inst, err := pathInstance(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	prop, err := bacnet.ParsePropertyID(r.PathValue("name"))
	if err != nil {
		badRequest(w, err)
		return
	}
	v, err := s.reg.ReadProperty(inst, prop, bacnet.ArrayAll)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, propertyBody{Property: prop.String(), Value: jsonValue(prop, v, s.reg.Location())})
}

func (s *Server) writeProperty(w http.ResponseWriter, r *http.Request) {
	inst, err := pathInstance(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	prop, err := bacnet.ParsePropertyID(r.PathValue("name"))
	if err != nil {
		badRequest(w, err)
		return
	}
	var body struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		badRequest(w, fmt.Errorf("decode body: %w", err))
		return
	}
	v, err := parseValue(prop, body.Value, s.reg.Location())
	if err != nil {
		badRequest(w, err)
		return
	}
	if err := s.reg.WriteProperty(inst, prop, bacnet.ArrayAll, v); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rangeFlags struct {
	FirstItem bool `json:"first_item"`
	LastItem  bool `json:"last_item"`
	MoreItems bool `json:"more_items"`
}

type rangeBody struct {
	ItemCount     uint32                  `json:"item_count"`
	Flags         rangeFlags              `json:"flags"`
	FirstSequence *uint32                 `json:"first_sequence,omitempty"`
	ItemData      string                  `json:"item_data"`
	Items         []*domain.ArchiveRecord `json:"items"`
}

func (s *Server) readRange(w http.ResponseWriter, r *http.Request) {
	inst, err := pathInstance(r)
	if err != nil {
		badRequest(w, err)
		return
	}
	req, err := parseRange(r, s.reg.Location())
	if err != nil {
		badRequest(w, err)
		return
	}
	res, err := s.reg.ReadRange(inst, req)
	if err != nil {
		writeError(w, err)
		return
	}

	body := rangeBody{
		ItemCount: res.ItemCount,
		Flags: rangeFlags{
			FirstItem: res.Flags.Has(trendlog.FirstItem),
			LastItem:  res.Flags.Has(trendlog.LastItem),
			MoreItems: res.Flags.Has(trendlog.MoreItems),
		},
		ItemData: hex.EncodeToString(res.ItemData),
		Items:    make([]*domain.ArchiveRecord, 0, len(res.Items)),
	}
	if res.HasFirstSequence {
		first := res.FirstSequence
		body.FirstSequence = &first
	}
	for _, it := range res.Items {
		body.Items = append(body.Items, domain.NewArchiveRecord(inst, it.Sequence, it.Record))
	}
	writeJSON(w, http.StatusOK, body)
}

func parseRange(r *http.Request, loc *time.Location) (trendlog.RangeRequest, error) {
	q := r.URL.Query()
	mode, err := trendlog.ParseMode(q.Get("mode"))
	if err != nil {
		return trendlog.RangeRequest{}, err
	}
	req := trendlog.RangeRequest{Mode: mode}

	count, err := strconv.ParseInt(q.Get("count"), 10, 32)
	if err != nil {
		return req, fmt.Errorf("bad count %q", q.Get("count"))
	}
	req.Count = int32(count)

	if m := q.Get("max"); m != "" {
		n, err := strconv.Atoi(m)
		if err != nil || n < 0 {
			return req, fmt.Errorf("bad max %q", m)
		}
		req.MaxBytes = n
	}

	ref := q.Get("ref")
	switch mode {
	case trendlog.ByTime:
		t, err := time.Parse(time.RFC3339, ref)
		if err != nil {
			return req, fmt.Errorf("bad time reference %q: %w", ref, err)
		}
		req.RefTime = bacnet.DateTimeFromTime(t.In(loc))
	default:
		n, err := strconv.ParseUint(ref, 10, 32)
		if err != nil {
			return req, fmt.Errorf("bad reference %q", ref)
		}
		if mode == trendlog.ByPosition {
			req.RefIndex = uint32(n)
		} else {
			req.RefSeq = uint32(n)
		}
	}
	return req, nil
}
