// RemoteTraffic is the client side of the narrow command/response protocol to
// an external stepped traffic simulator process. The wire format is
// newline-delimited JSON over TCP: one request object per line, one response
// object per line. Anything that times out or decodes badly surfaces as
// UnavailableError so the adapter's retry policy applies.

package traffic

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

const (
	cmdStep        = "step"
	cmdVehicles    = "vehicles"
	cmdConstraints = "constraints"
)

type remoteRequest struct {
	Cmd         string       `json:"cmd"`
	Constraints []Constraint `json:"constraints,omitempty"`
}

type remoteResponse struct {
	OK       bool           `json:"ok"`
	Error    string         `json:"error,omitempty"`
	Vehicles []VehicleState `json:"vehicles,omitempty"`
}

// RemoteTraffic speaks the step/vehicles/constraints protocol to an external
// simulator bridge. Calls are serialized; each carries a read/write deadline.
type RemoteTraffic struct {
	mu      sync.Mutex
	addr    string
	timeout time.Duration
	conn    net.Conn
	enc     *json.Encoder
	dec     *json.Decoder
}

// DialRemote connects to the simulator bridge at addr. A zero timeout
// defaults to 5s per round trip.
func DialRemote(addr string, timeout time.Duration) (*RemoteTraffic, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &UnavailableError{Op: "dial", Err: err}
	}
	return &RemoteTraffic{
		addr:    addr,
		timeout: timeout,
		conn:    conn,
		enc:     json.NewEncoder(conn),
		dec:     json.NewDecoder(conn),
	}, nil
}

func (rt *RemoteTraffic) roundTrip(req remoteRequest) (*remoteResponse, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.conn == nil {
		return nil, &UnavailableError{Op: req.Cmd, Err: fmt.Errorf("connection closed")}
	}
	if err := rt.conn.SetDeadline(time.Now().Add(rt.timeout)); err != nil {
		return nil, &UnavailableError{Op: req.Cmd, Err: err}
	}
	if err := rt.enc.Encode(req); err != nil {
		return nil, &UnavailableError{Op: req.Cmd, Err: err}
	}
	var resp remoteResponse
	if err := rt.dec.Decode(&resp); err != nil {
		return nil, &UnavailableError{Op: req.Cmd, Err: err}
	}
	if !resp.OK {
		return nil, &UnavailableError{Op: req.Cmd, Err: fmt.Errorf("simulator error: %s", resp.Error)}
	}
	return &resp, nil
}

// ApplyConstraints installs station throttles on the remote simulator.
func (rt *RemoteTraffic) ApplyConstraints(constraints []Constraint) error {
	_, err := rt.roundTrip(remoteRequest{Cmd: cmdConstraints, Constraints: constraints})
	return err
}

// Step advances the remote simulator one simulated time unit.
func (rt *RemoteTraffic) Step() error {
	_, err := rt.roundTrip(remoteRequest{Cmd: cmdStep})
	return err
}

// Vehicles reads back the remote fleet state.
func (rt *RemoteTraffic) Vehicles() ([]VehicleState, error) {
	resp, err := rt.roundTrip(remoteRequest{Cmd: cmdVehicles})
	if err != nil {
		return nil, err
	}
	return resp.Vehicles, nil
}

// Close tears down the connection.
func (rt *RemoteTraffic) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.conn == nil {
		return nil
	}
	err := rt.conn.Close()
	rt.conn = nil
	return err
}
