package player

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/godbus/dbus/v5"

	"karolbroda.com/lyricast/internal/logging"
	"karolbroda.com/lyricast/internal/track"
)

const (
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	mprisPrefix      = "org.mpris.MediaPlayer2."

	signalPropertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"
	signalSeeked            = "org.mpris.MediaPlayer2.Player.Seeked"
	signalNameOwnerChanged  = "org.freedesktop.DBus.NameOwnerChanged"
)

// Sink receives the platform events a session accepts.
type Sink interface {
	OnTrackMetadata(title string, artist string, durationMs int64)
	OnPlaybackState(playing bool)
	OnPositionTick(positionMs int64)
	OnSessionEnded()
}

// Service listens to one MPRIS player on the session bus and forwards its
// signals to a Sink.
type Service struct {
	bus        *dbus.Conn
	service    string
	sink       Sink
	log        *log.Logger
	signalChan chan *dbus.Signal
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

func NewService(bus *dbus.Conn, mprisService string, sink Sink, logger *log.Logger) (*Service, error) {
	if bus == nil {
		return nil, errors.New("nil dbus connection")
	}
	if mprisService == "" {
		return nil, errors.New("empty mpris service name")
	}
	if sink == nil {
		return nil, errors.New("nil event sink")
	}

	return &Service{
		bus:     bus,
		service: mprisService,
		sink:    sink,
		log:     logging.OrDiscard(logger),
	}, nil
}

func (s *Service) Name() string { return s.service }

// Start subscribes to player signals and replays the player's current state
// into the sink. A player that is not running yet is not an error.
func (s *Service) Start() error {
	s.signalChan = make(chan *dbus.Signal, 16)
	s.stopChan = make(chan struct{})

	s.bus.Signal(s.signalChan)

	matches := []string{
		fmt.Sprintf(
			"type='signal',sender='%s',interface='org.freedesktop.DBus.Properties',member='PropertiesChanged',path='%s'",
			s.service, mprisPath,
		),
		fmt.Sprintf(
			"type='signal',sender='%s',interface='%s',member='Seeked',path='%s'",
			s.service, mprisPlayerIface, mprisPath,
		),
		fmt.Sprintf(
			"type='signal',sender='org.freedesktop.DBus',interface='org.freedesktop.DBus',member='NameOwnerChanged',arg0='%s'",
			s.service,
		),
	}

	for _, match := range matches {
		err := s.bus.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, match).Err
		if err != nil {
			return fmt.Errorf("failed to add match %q: %w", match, err)
		}
	}

	s.wg.Add(1)
	go s.signalLoop()

	if err := s.Sync(); err != nil {
		s.log.Info("player not available yet", "service", s.service, "err", err)
	}

	return nil
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		if s.stopChan == nil {
			return
		}
		s.bus.RemoveSignal(s.signalChan)
		close(s.stopChan)
		s.wg.Wait()
	})
}

// Sync reads metadata, playback status and position directly and forwards them.
func (s *Service) Sync() error {
	snap, err := s.Current()
	if err != nil {
		return err
	}

	s.sink.OnTrackMetadata(snap.Track.Title, snap.Track.Artist, snap.Track.DurationMs)
	s.sink.OnPositionTick(snap.PositionMs)
	s.sink.OnPlaybackState(snap.Playing)
	return nil
}

// Snapshot is the player state read on demand.
type Snapshot struct {
	Track      track.Track
	Album      string
	PositionMs int64
	Playing    bool
	Identity   string
}

func (s *Service) Current() (Snapshot, error) {
	obj := s.bus.Object(s.service, mprisPath)

	prop, err := obj.GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get metadata property: %w", err)
	}

	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return Snapshot{}, fmt.Errorf("unexpected metadata type %T", prop.Value())
	}

	snap := Snapshot{
		Track:    trackFromMetadata(metadata),
		Album:    extractString(metadata, "xesam:album"),
		Identity: Identity(s.bus, s.service),
	}

	if status, err := obj.GetProperty(mprisPlayerIface + ".PlaybackStatus"); err == nil {
		text, _ := status.Value().(string)
		snap.Playing = text == "Playing"
	}

	if pos, err := s.Position(); err == nil {
		snap.PositionMs = pos
	}

	return snap, nil
}

// Position returns the current playback position in milliseconds.
func (s *Service) Position() (int64, error) {
	return readPosition(s.bus, s.service)
}

// PositionReader polls a player's position without subscribing to its signals.
type PositionReader struct {
	bus     *dbus.Conn
	service string
}

func NewPositionReader(bus *dbus.Conn, service string) PositionReader {
	return PositionReader{bus: bus, service: service}
}

func (r PositionReader) Position() (int64, error) {
	return readPosition(r.bus, r.service)
}

func readPosition(bus *dbus.Conn, service string) (int64, error) {
	obj := bus.Object(service, mprisPath)

	prop, err := obj.GetProperty(mprisPlayerIface + ".Position")
	if err != nil {
		return 0, fmt.Errorf("failed to get position property: %w", err)
	}

	positionMicroseconds, ok := prop.Value().(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected position type %T", prop.Value())
	}

	return microsToMillis(positionMicroseconds), nil
}

func (s *Service) signalLoop() {
	defer s.wg.Done()

	for {
		select {
		case sig, ok := <-s.signalChan:
			if !ok {
				return
			}
			s.handleSignal(sig)
		case <-s.stopChan:
			return
		}
	}
}

func (s *Service) handleSignal(sig *dbus.Signal) {
	if sig == nil {
		return
	}

	switch sig.Name {
	case signalPropertiesChanged:
		s.handlePropertiesChanged(sig)
	case signalSeeked:
		s.handleSeeked(sig)
	case signalNameOwnerChanged:
		s.handleNameOwnerChanged(sig)
	}
}

func (s *Service) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok || interfaceName != mprisPlayerIface {
		return
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	if metadataVariant, exists := changedProps["Metadata"]; exists {
		metadata, ok := metadataVariant.Value().(map[string]dbus.Variant)
		if ok {
			t := trackFromMetadata(metadata)
			s.log.Debug("metadata changed", "track", t.String())
			s.sink.OnTrackMetadata(t.Title, t.Artist, t.DurationMs)
		}
	}

	if positionVariant, exists := changedProps["Position"]; exists {
		if micros, ok := positionVariant.Value().(int64); ok {
			s.sink.OnPositionTick(microsToMillis(micros))
		}
	}

	if playbackVariant, exists := changedProps["PlaybackStatus"]; exists {
		status, ok := playbackVariant.Value().(string)
		if ok {
			s.log.Debug("playback status changed", "status", status)
			s.sink.OnPlaybackState(status == "Playing")
		}
	}
}

func (s *Service) handleSeeked(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}

	positionMicroseconds, ok := sig.Body[0].(int64)
	if !ok {
		return
	}

	s.sink.OnPositionTick(microsToMillis(positionMicroseconds))
}

// handleNameOwnerChanged treats the player leaving the bus as the end of its session.
func (s *Service) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}

	name, _ := sig.Body[0].(string)
	newOwner, _ := sig.Body[2].(string)
	if name != s.service {
		return
	}

	if newOwner == "" {
		s.log.Info("player left the bus", "service", s.service)
		s.sink.OnSessionEnded()
		return
	}

	s.log.Info("player joined the bus", "service", s.service)
	if err := s.Sync(); err != nil {
		s.log.Debug("failed to read new player state", "err", err)
	}
}

// ListPlayers returns the MPRIS bus names on the session bus in name order.
func ListPlayers(bus *dbus.Conn) ([]string, error) {
	var names []string
	err := bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil, fmt.Errorf("failed to list dbus names: %w", err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)

	return players, nil
}

// Identity returns the human-readable player name, or "" when unavailable.
func Identity(bus *dbus.Conn, service string) string {
	obj := bus.Object(service, mprisPath)
	variant, err := obj.GetProperty(mprisRootIface + ".Identity")
	if err != nil {
		return ""
	}

	identity, ok := variant.Value().(string)
	if !ok {
		return ""
	}

	return identity
}

func trackFromMetadata(metadata map[string]dbus.Variant) track.Track {
	return track.New(
		extractString(metadata, "xesam:title"),
		extractArtist(metadata, "xesam:artist"),
		extractDurationMillis(metadata, "mpris:length"),
	)
}

func microsToMillis(micros int64) int64 {
	if micros < 0 {
		return 0
	}
	return micros / 1000
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	if metadata == nil {
		return ""
	}

	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	text, ok := variant.Value().(string)
	if ok {
		return text
	}

	return ""
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	if metadata == nil {
		return ""
	}

	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	switch typed := variant.Value().(type) {
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
		return ""
	case string:
		return typed
	default:
		return ""
	}
}

// extractDurationMillis reads mpris:length, which players send as either int64 or uint64 microseconds.
func extractDurationMillis(metadata map[string]dbus.Variant, key string) int64 {
	if metadata == nil {
		return 0
	}

	variant, exists := metadata[key]
	if !exists {
		return 0
	}

	switch typed := variant.Value().(type) {
	case int64:
		return microsToMillis(typed)
	case uint64:
		return int64(typed / 1000)
	default:
		return 0
	}
}
