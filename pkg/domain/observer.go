package domain

// Navigation actions carried by notifications. An explicit jump is notified
// with the target vertex id as its action.
const (
	ActionStart    = "start"
	ActionContinue = "continue"
	ActionBack     = "back"
	ActionDone     = "done"
)

// Observer receives every navigation event, synchronously and in
// subscription order. Step is nil only for ActionDone.
// Observers must not panic; isolating failures is the subscriber's job.
type Observer interface {
	Notify(action string, step *Step)
}

type funcObserver struct {
	fn func(action string, step *Step)
}

func (o *funcObserver) Notify(action string, step *Step) { o.fn(action, step) }

// NewObserver adapts a function to an Observer. Each call returns a distinct
// observer, so the result can later be passed to Unsubscribe.
func NewObserver(fn func(action string, step *Step)) Observer {
	return &funcObserver{fn: fn}
}
