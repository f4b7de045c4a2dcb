package reporters

import (
	"github.com/buildhook-io/buildhook/pkg/model"
	"github.com/buildhook-io/buildhook/pkg/streaming"
	"github.com/sirupsen/logrus"
)

// Reporter turns one build lifecycle event into zero or more outbound
// notifications.
type Reporter interface {
	GotEvent(key streaming.EventKey, build *model.Build) error
}

type Manager interface {
	Broadcast(key streaming.EventKey, build *model.Build)
	AddReporter(reporter Reporter)
}

type ManagerImpl struct {
	reporters []Reporter
	broadcast chan event
}

type event struct {
	key   streaming.EventKey
	build *model.Build
}

func NewManager() *ManagerImpl {
	return &ManagerImpl{
		reporters: []Reporter{},
		broadcast: make(chan event),
	}
}

func (m *ManagerImpl) Broadcast(key streaming.EventKey, build *model.Build) {
	m.broadcast <- event{key: key, build: build}
}

func (m *ManagerImpl) AddReporter(reporter Reporter) {
	m.reporters = append(m.reporters, reporter)
}

// Run delivers every broadcast event to every reporter. Each delivery runs in
// its own goroutine so one slow or failing reporter never holds up another.
func (m *ManagerImpl) Run() {
	for ev := range m.broadcast {
		eventsProcessed.Inc()
		for _, r := range m.reporters {
			go func(r Reporter, ev event) {
				err := r.GotEvent(ev.key, ev.build)
				if err != nil {
					logrus.Warnf("cannot send notification: %s", err)
				}
			}(r, ev)
		}
	}
}
