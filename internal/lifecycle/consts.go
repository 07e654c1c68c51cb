package lifecycle

const (
	EnvNameNotifySocket string = "NOTIFY_SOCKET"

	notifyReady    string = "READY=1"
	notifyStopping string = "STOPPING=1"
)
