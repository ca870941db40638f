package proto

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/MrSnakeDoc/warden/internal/domain"
	"github.com/MrSnakeDoc/warden/internal/utils"
)

// maxStatusBytes caps the status response a server may send back.
const maxStatusBytes = 1 << 20

// Pinger issues Minecraft server list ping status queries over TCP.
// One Probe is one handshake + status exchange on a fresh connection.
type Pinger struct{}

type statusResponse struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Online int `json:"online"`
		Max    int `json:"max"`
	} `json:"players"`
	Description json.RawMessage `json:"description"`
}

// Probe queries host:port and returns the parsed status. The deadline of
// ctx bounds the whole exchange, dial included.
func (p *Pinger) Probe(ctx context.Context, host string, port int) (domain.ProbeResult, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return domain.ProbeResult{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer utils.Close(conn)

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return domain.ProbeResult{}, fmt.Errorf("set deadline: %w", err)
		}
	} else {
		_ = conn.SetDeadline(time.Now().Add(8 * time.Second))
	}

	// Handshake (intent: status), then an empty status request frame.
	var body []byte
	body = appendVarInt(body, 0x00)      // packet id
	body = appendVarInt(body, -1)        // protocol version: unspecified
	body = appendString(body, host)      // server address
	body = append(body, byte(port>>8), byte(port)) // server port, big endian
	body = appendVarInt(body, 1)         // next state: status

	frame := appendVarInt(nil, int32(len(body)))
	frame = append(frame, body...)
	frame = append(frame, 0x01, 0x00) // status request: length 1, id 0x00

	if _, err := conn.Write(frame); err != nil {
		return domain.ProbeResult{}, fmt.Errorf("send handshake: %w", err)
	}

	frameLen, err := readVarInt(conn)
	if err != nil {
		return domain.ProbeResult{}, fmt.Errorf("read status frame: %w", err)
	}
	if frameLen <= 0 || frameLen > maxStatusBytes {
		return domain.ProbeResult{}, fmt.Errorf("status frame length %d out of range", frameLen)
	}

	packetID, err := readVarInt(conn)
	if err != nil {
		return domain.ProbeResult{}, fmt.Errorf("read packet id: %w", err)
	}
	if packetID != 0x00 {
		return domain.ProbeResult{}, fmt.Errorf("unexpected packet id 0x%02x", packetID)
	}

	jsonLen, err := readVarInt(conn)
	if err != nil {
		return domain.ProbeResult{}, fmt.Errorf("read status length: %w", err)
	}
	if jsonLen <= 0 || jsonLen > maxStatusBytes {
		return domain.ProbeResult{}, fmt.Errorf("status length %d out of range", jsonLen)
	}

	raw := make([]byte, jsonLen)
	if _, err := io.ReadFull(conn, raw); err != nil {
		return domain.ProbeResult{}, fmt.Errorf("read status body: %w", err)
	}

	var status statusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return domain.ProbeResult{}, fmt.Errorf("parse status: %w", err)
	}

	return domain.ProbeResult{
		ProtocolID:   status.Version.Protocol,
		VersionLabel: status.Version.Name,
		Players:      status.Players.Online,
		MaxPlayers:   status.Players.Max,
		MOTD:         motdText(status.Description),
	}, nil
}

// motdText extracts a plain string from the description field, which
// servers send either as a bare string or as a chat component object.
func motdText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var component struct {
		Text  string `json:"text"`
		Extra []struct {
			Text string `json:"text"`
		} `json:"extra"`
	}
	if err := json.Unmarshal(raw, &component); err != nil {
		return ""
	}
	text := component.Text
	for _, part := range component.Extra {
		text += part.Text
	}
	return text
}
