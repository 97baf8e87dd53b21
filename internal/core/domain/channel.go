package domain

// PeerDirection is the side of the media path a channel observes.
type PeerDirection int

const (
	DirSender PeerDirection = iota
	DirReceiver
)

func (d PeerDirection) String() string {
	if d == DirSender {
		return "sender"
	}
	return "receiver"
}

// MediaKind is the media type a channel carries.
type MediaKind int

const (
	KindAudio MediaKind = iota
	KindVideo
)

func (k MediaKind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "video"
}

// ChannelKey identifies one of the four independent (direction, kind)
// analyzers the engine runs.
type ChannelKey struct {
	Direction PeerDirection
	Kind      MediaKind
}

func (c ChannelKey) String() string {
	return c.Direction.String() + ":" + c.Kind.String()
}

// AllChannels lists the four channels in the order the driver must emit
// events for within a tick: audio before video, sender before receiver is
// not mandated by spec, but audio-before-video within each direction is.
func AllChannels() [4]ChannelKey {
	return [4]ChannelKey{
		{Direction: DirSender, Kind: KindAudio},
		{Direction: DirSender, Kind: KindVideo},
		{Direction: DirReceiver, Kind: KindAudio},
		{Direction: DirReceiver, Kind: KindVideo},
	}
}

// ChannelsForDirection returns the two channels (audio, video) that are
// exposed once a source is attached for the given direction.
func ChannelsForDirection(dir PeerDirection) [2]ChannelKey {
	return [2]ChannelKey{
		{Direction: dir, Kind: KindAudio},
		{Direction: dir, Kind: KindVideo},
	}
}
