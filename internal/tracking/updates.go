package tracking

import (
	"fmt"

	"github.com/nagarbus/nagarbus/internal/network"
)

// NoticeKind classifies a service notice.
type NoticeKind string

// Notice kinds.
const (
	NoticeDelay      NoticeKind = "delay"
	NoticeDisruption NoticeKind = "disruption"
	NoticeOnTime     NoticeKind = "on_time"
)

// Notice is one service update for a set of buses.
type Notice struct {
	Kind         NoticeKind `json:"kind"`
	Message      string     `json:"message"`
	MessageHindi string     `json:"messageHindi"`
}

// ServiceUpdates summarizes the state of buses, typically those of one
// route. Delay and disruption notices can both appear; the on-time notice
// appears only when every bus is on time.
func ServiceUpdates(buses []network.Bus) []Notice {
	var (
		delayed, broken bool
		maxDelay        int
	)
	allOnTime := true
	for _, b := range buses {
		maxDelay = max(maxDelay, b.DelayMinutes)
		switch b.Status {
		case network.StatusDelayed:
			delayed = true
		case network.StatusBreakdown:
			broken = true
		}
		if b.Status != network.StatusOnTime {
			allOnTime = false
		}
	}

	notices := []Notice{}
	if delayed {
		notices = append(notices, Notice{
			Kind:         NoticeDelay,
			Message:      fmt.Sprintf("Some buses are running %d minutes late due to traffic conditions.", maxDelay),
			MessageHindi: fmt.Sprintf("यातायात के कारण कुछ बसें %d मिनट देरी से चल रही हैं।", maxDelay),
		})
	}
	if broken {
		notices = append(notices, Notice{
			Kind:         NoticeDisruption,
			Message:      "Service disruption: One bus is temporarily out of service. Alternative routes available.",
			MessageHindi: "सेवा बाधित: एक बस अस्थायी रूप से सेवा से बाहर है। वैकल्पिक मार्ग उपलब्ध हैं।",
		})
	}
	if allOnTime {
		notices = append(notices, Notice{
			Kind:         NoticeOnTime,
			Message:      "All buses are running on time. No service disruptions.",
			MessageHindi: "सभी बसें समय पर चल रही हैं। कोई सेवा बाधा नहीं।",
		})
	}
	return notices
}
