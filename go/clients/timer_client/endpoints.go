package timer_client

import "fmt"

const (
	DefaultBaseURL = "http://localhost:8080"

	ActorHeader          = "X-Actor-ID"
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	TimerGroupsEndpoint = "/timer-groups"
)

func timerGroupEndpoint(code string) string {
	return fmt.Sprintf("%s/%s", TimerGroupsEndpoint, code)
}
