package cfg

import "time"

const (
	// Client
	CLIENT_VERSION         = "0.3.0"
	CLIENT_DEFAULT_SERVER  = "https://showterm.herokuapp.com"
	CLIENT_CONNECT_TIMEOUT = 10 * time.Second // connection establishment, TLS handshake included
	CLIENT_READ_TIMEOUT    = 10 * time.Second // wait for the response once the request is sent
	CLIENT_UPLOAD_ATTEMPTS = 2                // initial attempt + one retry
	CLIENT_DELETE_ATTEMPTS = 1
	CLIENT_SECRET_FILE     = ".showterm"                // relative to the user's home
	CLIENT_HISTORY_FILE    = ".showterm.history.boltdb" // relative to the user's home
	CLIENT_LOG_FILE        = "/tmp/termshow.log"

	// Recorder
	RECORDER_PROBE_COMMAND = "echo foo"
	RECORDER_PROBE_MARKER  = "foo"
	RECORDER_DEFAULT_COLS  = 80
	RECORDER_DEFAULT_ROWS  = 25

	// Server
	SERVER_VERSION          = "0.3.0"
	SERVER_MAX_UPLOAD_SIZE  = 32 << 20 // bytes accepted for one POST /scripts body
	SERVER_DEFAULT_ADDR     = "localhost:3000"
	SERVER_DEFAULT_DB       = ".termshow"
	SERVER_SHUTDOWN_TIMEOUT = 5 * time.Second
	SERVER_LOG_FILE         = "/tmp/termshow.log"
)

// Environment prefix for every setting, e.g. SHOWTERM_SERVER.
const ENV_PREFIX = "SHOWTERM"
