package clickhouse

import "time"

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	host         string
	port         int
	database     string
	user         string
	password     string
	useHTTP      bool
	asyncInsert  bool
	waitForAsync bool

	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration

	dialTimeout time.Duration
	readTimeout time.Duration
	// applied pool-side only; older servers reject it as a DSN setting
	writeTimeout time.Duration
	maxExecTime  time.Duration
}

// WithHost sets the server host.
func WithHost(host string) ClientOption {
	return func(c *clientConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) ClientOption {
	return func(c *clientConfig) { c.port = port }
}

// WithDatabase sets the target database.
func WithDatabase(db string) ClientOption {
	return func(c *clientConfig) { c.database = db }
}

// WithCredentials sets the user and password.
func WithCredentials(user, password string) ClientOption {
	return func(c *clientConfig) {
		c.user = user
		c.password = password
	}
}

// WithMaxConnections sizes the sql.DB pool.
func WithMaxConnections(maxOpen, maxIdle int) ClientOption {
	return func(c *clientConfig) {
		c.maxOpen = maxOpen
		c.maxIdle = maxIdle
	}
}

// WithTimeouts sets dial, read, and write timeouts.
func WithTimeouts(dial, read, write time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.dialTimeout = dial
		c.readTimeout = read
		c.writeTimeout = write
	}
}

// WithHTTP switches from the native protocol to HTTP transport.
func WithHTTP(on bool) ClientOption {
	return func(c *clientConfig) { c.useHTTP = on }
}

// WithAsyncInsert enables server-side async inserts; wait controls whether
// the insert call blocks until the buffer is flushed.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(c *clientConfig) {
		c.asyncInsert = enabled
		c.waitForAsync = wait
	}
}

// WithMaxExecutionTime caps per-query execution time server-side.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *clientConfig) { c.maxExecTime = d }
}
