package chaser

// ShouldLaunch reports whether a launch should be requested for a cycle
// that observed count available seats. It is true only once per
// subscription: previousSuppressed must be set after the first launch.
func ShouldLaunch(previousSuppressed, autoLaunchEnabled bool, count int) bool {
	return !previousSuppressed && autoLaunchEnabled && count > 0
}
