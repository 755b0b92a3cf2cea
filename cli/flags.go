package cli

var (
	verbose bool

	// all commands
	configPath string

	// for apps command
	appsFilter string
	appsJSON   bool

	// for run command
	compositorURL string
	listenAddr    string
	runDaemon     bool
	enableCORS    bool
)
