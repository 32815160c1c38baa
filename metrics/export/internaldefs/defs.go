package internaldefs

import "github.com/MrEthical07/authstate"

// Counter names one engine counter for every exporter.
type Counter struct {
	ID   authstate.MetricID
	Name string
	Help string
}

// Counters lists every exported counter in exposition order.
var Counters = []Counter{
	{authstate.MetricLoginSuccess, "authstate_login_success_total", "Logins that issued a token."},
	{authstate.MetricLoginFailure, "authstate_login_failure_total", "Logins rejected for bad credentials or a backend error."},
	{authstate.MetricLoginRateLimited, "authstate_login_rate_limited_total", "Logins refused by the attempt throttle."},
	{authstate.MetricValidateSuccess, "authstate_validate_success_total", "Tokens accepted by validate."},
	{authstate.MetricValidateFailure, "authstate_validate_failure_total", "Tokens rejected by validate."},
	{authstate.MetricTokenExpired, "authstate_token_expired_total", "Rejections caused by an expired token."},
	{authstate.MetricTokenInvalid, "authstate_token_invalid_total", "Rejections caused by a malformed or forged token."},
	{authstate.MetricUserNotFound, "authstate_user_not_found_total", "Valid tokens whose user no longer exists."},
	{authstate.MetricLogout, "authstate_logout_total", "Logout calls."},
	{authstate.MetricProfileUpdate, "authstate_profile_update_total", "Stored profile updates."},
	{authstate.MetricProfileUpdateFailure, "authstate_profile_update_failure_total", "Rejected profile updates."},
}

// AuditDropped counts audit events the dispatcher could not queue.
const (
	AuditDroppedName = "authstate_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher queue was full."
)

// Latency describes the validate latency histogram.
const (
	LatencyName = "authstate_validate_latency_seconds"
	LatencyHelp = "Time spent validating a token, including the directory lookup."
)

// Bucket is one histogram upper bound, in Prometheus and OTel spelling.
type Bucket struct {
	LE     string
	Suffix string
}

// Buckets match the engine's millisecond bounds; the last is open-ended.
var Buckets = [8]Bucket{
	{"0.005", "0_005"},
	{"0.01", "0_01"},
	{"0.025", "0_025"},
	{"0.05", "0_05"},
	{"0.1", "0_1"},
	{"0.25", "0_25"},
	{"0.5", "0_5"},
	{"+Inf", "inf"},
}

// Cumulative turns per-bucket counts into running totals. Missing buckets
// count as zero and extra ones are ignored.
func Cumulative(raw []uint64) [len(Buckets)]uint64 {
	var out [len(Buckets)]uint64
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
