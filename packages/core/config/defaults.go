package config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         0, // wait for the transport indefinitely
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		Headers:         nil,
		RequestIDHeader: "",
		LogLevel:        "",
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}
