package cli

var (
	verbose    bool
	configFile string

	// for devices command
	showAllDevices bool

	// for server and run commands
	serveAPI bool
)
