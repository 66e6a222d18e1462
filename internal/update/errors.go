package update

// CheckError means the update metadata could not be fetched or parsed.
type CheckError struct {
	Err error
}

func (e *CheckError) Error() string { return "check for update: " + e.Err.Error() }
func (e *CheckError) Unwrap() error { return e.Err }

// DownloadError means the transfer was interrupted or the artifact is corrupt.
type DownloadError struct {
	Err error
}

func (e *DownloadError) Error() string { return "download update: " + e.Err.Error() }
func (e *DownloadError) Unwrap() error { return e.Err }

// InstallError means the artifact could not be applied.
type InstallError struct {
	Err error
}

func (e *InstallError) Error() string { return "install update: " + e.Err.Error() }
func (e *InstallError) Unwrap() error { return e.Err }

// RestartError means the application could not be relaunched.
type RestartError struct {
	Err error
}

func (e *RestartError) Error() string { return "restart application: " + e.Err.Error() }
func (e *RestartError) Unwrap() error { return e.Err }
