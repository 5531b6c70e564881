package config

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNURLs are used when no ICE configuration is provided.
var DefaultSTUNURLs = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

type iceServerJSON struct {
	URLs       stringOrStringSlice `json:"urls"`
	Username   string              `json:"username,omitempty"`
	Credential string              `json:"credential,omitempty"`
}

type stringOrStringSlice []string

func (s *stringOrStringSlice) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ParseICEServers builds the ICE server list handed to clients at session
// start. ICE_SERVERS_JSON wins over the STUN/TURN convenience variables; when
// both are empty the public Google STUN servers are used.
func ParseICEServers(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential string) ([]webrtc.ICEServer, error) {
	if raw := strings.TrimSpace(iceServersJSON); raw != "" {
		var servers []iceServerJSON
		if err := json.Unmarshal([]byte(raw), &servers); err != nil {
			return nil, errors.Wrap(err, "ICE_SERVERS_JSON")
		}
		out := make([]webrtc.ICEServer, 0, len(servers))
		for i, server := range servers {
			pc := webrtc.ICEServer{
				URLs:     splitList(strings.Join(server.URLs, ",")),
				Username: strings.TrimSpace(server.Username),
			}
			if cred := strings.TrimSpace(server.Credential); cred != "" {
				pc.Credential = cred
			}
			if err := validateICEServer(pc); err != nil {
				return nil, errors.Wrapf(err, "ICE_SERVERS_JSON[%d]", i)
			}
			out = append(out, pc)
		}
		return out, nil
	}

	var servers []webrtc.ICEServer
	stun := splitList(stunURLs)
	if len(stun) == 0 && strings.TrimSpace(turnURLs) == "" {
		stun = DefaultSTUNURLs
	}
	if len(stun) > 0 {
		server := webrtc.ICEServer{URLs: stun}
		if err := validateICEServer(server); err != nil {
			return nil, errors.Wrap(err, "STUN_URLS")
		}
		servers = append(servers, server)
	}

	if turn := splitList(turnURLs); len(turn) > 0 {
		server := webrtc.ICEServer{
			URLs:     turn,
			Username: strings.TrimSpace(turnUsername),
		}
		if cred := strings.TrimSpace(turnCredential); cred != "" {
			server.Credential = cred
		}
		if err := validateICEServer(server); err != nil {
			return nil, errors.Wrap(err, "TURN_URLS")
		}
		servers = append(servers, server)
	}
	return servers, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateICEServer(server webrtc.ICEServer) error {
	if len(server.URLs) == 0 {
		return errors.New("missing urls")
	}
	needsCreds := false
	for _, url := range server.URLs {
		switch {
		case strings.HasPrefix(url, "stun:"), strings.HasPrefix(url, "stuns:"):
		case strings.HasPrefix(url, "turn:"), strings.HasPrefix(url, "turns:"):
			needsCreds = true
		default:
			return errors.Newf("unsupported url scheme: %q", url)
		}
	}
	if needsCreds {
		cred, _ := server.Credential.(string)
		if server.Username == "" || cred == "" {
			return errors.New("turn urls require username and credential")
		}
	}
	return nil
}
