package alerter

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mattmezza/alertai/internal/config"
	"github.com/mattmezza/alertai/internal/history"
	"github.com/mattmezza/alertai/internal/notifier"
	"github.com/mattmezza/alertai/internal/state"
)

type AlertEvent struct {
	ID             string        `json:"id"`
	Category       string        `json:"category"`
	Message        string        `json:"message"`
	Hostname       string        `json:"hostname"`
	Timestamp      time.Time     `json:"timestamp"`
	ActiveFor      time.Duration `json:"active_for_ns"` // Continuous detection when fired
	PeakConfidence float64       `json:"peak_confidence"`
	MeanConfidence float64       `json:"mean_confidence"`
	Frames         int           `json:"frames"` // Detected frames in the streak still held in history
}

// Sink receives every fired alert after notifications were attempted.
type Sink interface {
	Publish(event AlertEvent)
}

// DeliveryObserver is told the outcome of every channel send; err is nil on success.
type DeliveryObserver func(channel string, err error)

type Option func(*Alerter)

func WithSinks(sinks ...Sink) Option {
	return func(a *Alerter) { a.sinks = append(a.sinks, sinks...) }
}

func WithDeliveryObserver(obs DeliveryObserver) Option {
	return func(a *Alerter) { a.onDelivery = obs }
}

// WithIDGenerator replaces the random event IDs.
func WithIDGenerator(gen func() string) Option {
	return func(a *Alerter) { a.newID = gen }
}

type Alerter struct {
	categories    []string
	debouncer     *Debouncer
	historyBuffer *history.DetectionHistoryBuffer
	notifiers     map[string]notifier.Notifier // map channel name to notifier instance
	channels      []string                     // sorted channel names, for a stable send order
	templates     notifier.NotificationTemplates
	hostname      string
	sinks         []Sink
	onDelivery    DeliveryObserver
	newID         func() string
}

func NewAlerter(cfg *config.Config, debouncer *Debouncer, histBuffer *history.DetectionHistoryBuffer, configuredNotifiers map[string]notifier.Notifier, opts ...Option) (*Alerter, error) {
	if cfg == nil || debouncer == nil || histBuffer == nil {
		return nil, fmt.Errorf("alerter: config, debouncer and history buffer are required")
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("alerter: no categories to monitor")
	}

	a := &Alerter{
		categories:    append([]string(nil), cfg.Categories...),
		debouncer:     debouncer,
		historyBuffer: histBuffer,
		notifiers:     configuredNotifiers,
		hostname:      cfg.EffectiveHostname,
		templates: notifier.NotificationTemplates{
			AlertTemplate: cfg.Templates.Alert,
		},
		newID: uuid.NewString,
	}
	for name := range configuredNotifiers {
		a.channels = append(a.channels, name)
	}
	sort.Strings(a.channels)

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Process feeds one frame into the debouncer. present maps each category seen in
// the frame to its highest confidence; categories missing from it count as not
// detected. Every category is updated on every frame so that gaps reset the
// continuous-detection clock. Fired alerts are sent to all channels before
// Process returns.
func (a *Alerter) Process(now time.Time, present map[string]float64) []AlertEvent {
	var events []AlertEvent

	for _, category := range a.categories {
		confidence, detected := present[category]
		if detected {
			a.historyBuffer.AddDataPoint(category, confidence, now)
		}
		if !a.debouncer.Update(category, detected, now) {
			continue
		}
		events = append(events, a.newEvent(category, now))
	}

	for _, event := range events {
		log.Printf("ALERT FIRED: %s (active for %s, peak confidence %.2f over %d frames)",
			event.Category, notifier.FormatActiveFor(event.ActiveFor), event.PeakConfidence, event.Frames)
		a.sendNotifications(event)
		for _, sink := range a.sinks {
			sink.Publish(event)
		}
	}
	return events
}

func (a *Alerter) newEvent(category string, now time.Time) AlertEvent {
	var activeFor time.Duration
	if st, ok := a.debouncer.State(category); ok {
		activeFor = now.Sub(st.ActiveSince)
	}
	summary := history.Summarize(a.historyBuffer.GetDataPointsForDuration(category, activeFor, now))

	event := AlertEvent{
		ID:             a.newID(),
		Category:       category,
		Hostname:       a.hostname,
		Timestamp:      now,
		ActiveFor:      activeFor,
		PeakConfidence: summary.PeakConfidence,
		MeanConfidence: summary.MeanConfidence,
		Frames:         summary.Frames,
	}

	msg, err := notifier.RenderMessage(a.templates, a.notificationData(event))
	if err != nil {
		log.Printf("Alerter: failed to render alert message for '%s': %v", category, err)
		msg = fmt.Sprintf("Alert! %s detected", category)
	}
	event.Message = msg
	return event
}

func (a *Alerter) notificationData(event AlertEvent) notifier.NotificationData {
	return notifier.NotificationData{
		EventID:             event.ID,
		Category:            event.Category,
		Confidence:          event.PeakConfidence,
		MeanConfidence:      event.MeanConfidence,
		Frames:              event.Frames,
		ActiveFor:           event.ActiveFor,
		Hostname:            event.Hostname,
		Time:                event.Timestamp,
		FormattedConfidence: notifier.FormatConfidence(event.PeakConfidence),
		FormattedActiveFor:  notifier.FormatActiveFor(event.ActiveFor),
	}
}

// sendNotifications never fails: a broken channel is logged and the others still run.
func (a *Alerter) sendNotifications(event AlertEvent) {
	data := a.notificationData(event)
	for _, channelName := range a.channels {
		notifierInstance := a.notifiers[channelName]

		err := notifierInstance.Send(data, a.templates)
		if err != nil {
			log.Printf("Failed to send notification for '%s' via channel '%s': %v", event.Category, channelName, err)
		} else {
			log.Printf("Notification sent for '%s' via channel '%s'", event.Category, channelName)
		}
		if a.onDelivery != nil {
			a.onDelivery(channelName, err)
		}
	}
}

// Configure changes the debouncer thresholds for all later frames.
func (a *Alerter) Configure(required, cooldown time.Duration) error {
	return a.debouncer.Configure(required, cooldown)
}

// Categories returns the monitored categories in evaluation order.
func (a *Alerter) Categories() []string {
	return append([]string(nil), a.categories...)
}

// Snapshot returns the debouncer state of every observed category.
func (a *Alerter) Snapshot() state.Snapshot {
	return a.debouncer.Snapshot()
}

// GetCurrentActiveCategories returns the categories detected in the latest frame.
func (a *Alerter) GetCurrentActiveCategories() []string {
	return a.debouncer.Snapshot().ActiveCategories()
}
