package controlplane

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/runtimevic/fieldbusd/internal/identify"
)

var log = logrus.WithField("subsystem", "controlplane")

// Router builds the HTTP surface: machine mutation, NV-memory identity
// write-back, bus recovery, metrics, and the websocket event feed.
func (br *Bridge) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/machine/mutate", br.handleMutate).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/write_machine_device_identification", br.handleWriteIdentification).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/ethercat/recover", br.handleRecover).Methods(http.MethodPost)
	r.Handle("/api/v1/metrics/prometheus", promhttp.Handler())
	r.Handle("/ws/machine/events", websocket.Handler(br.handleEventSocket))
	return r
}

type mutateRequest struct {
	Unique  identify.MachineIdentificationUnique `json:"unique"`
	Payload json.RawMessage                      `json:"payload"`
}

func (br *Bridge) handleMutate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	var req mutateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if !br.Mutate(req.Unique, req.Payload) {
		http.Error(w, "unknown machine", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type writeIdentificationRequest struct {
	SubdeviceIndex int                                       `json:"subdevice_index"`
	Tag            identify.DeviceMachineIdentification      `json:"tag"`
}

func (br *Bridge) handleWriteIdentification(w http.ResponseWriter, r *http.Request) {
	var req writeIdentificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if br.writeIdentification == nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	br.WriteMachineDeviceInfo(func() error {
		return br.writeIdentification(req.SubdeviceIndex, req.Tag)
	})
	w.WriteHeader(http.StatusAccepted)
}

// handleRecover is a stub: there is no live bus recovery path. An
// operator-facing supervisor is expected to restart the process on a
// fatal bus fault instead.
func (br *Bridge) handleRecover(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "ethercat recovery is not implemented; restart the process", http.StatusNotImplemented)
}

func (br *Bridge) handleEventSocket(ws *websocket.Conn) {
	sub := br.SubscribeEvents()
	defer sub.Unsubscribe()

	for msg := range sub.Channel() {
		if err := websocket.JSON.Send(ws, msg.Payload); err != nil {
			log.WithError(err).Debug("event socket send failed, closing")
			return
		}
	}
}
