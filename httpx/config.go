package httpx

// ErrorLoggingConfig controls how HandleError logs rejected requests.
// 5xx responses are logged at error level unless their status is ignored.
type ErrorLoggingConfig struct {
	// Enable logging of 4xx rejections
	Enable bool `mapstructure:"enable" json:"enable"`

	// IgnoreHTTPStatus statuses never logged
	IgnoreHTTPStatus []int `mapstructure:"ignore_http_status" json:"ignore_http_status"`

	// FullErrorChain adds the wrapped cause to the entry
	FullErrorChain bool `mapstructure:"full_error_chain" json:"full_error_chain"`

	// LogLevel for 4xx rejections: warn or debug
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

// DefaultErrorLoggingConfig logs only server faults, with their cause
func DefaultErrorLoggingConfig() ErrorLoggingConfig {
	return ErrorLoggingConfig{
		Enable:           false,
		IgnoreHTTPStatus: []int{},
		FullErrorChain:   true,
		LogLevel:         "debug",
	}
}
