package media

import (
	"image"
	"io"
	"time"

	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/format/mp4"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Filesystem used by file-backed engines. Tests swap in an in-memory one.
var Filesystem afero.Fs = afero.NewOsFs()

func init() {
	RegisterEngine("mp4", OpenMP4)
}

// Open an MP4 file and return its video stream as a Handle. The whole file is
// scanned once to establish the stream durations.
func OpenMP4(filename string) (Handle, error) {
	log.Info("Opening file %s", filename)
	file, err := Filesystem.Open(filename)
	if err != nil {
		return nil, err
	}

	r, info, err := newMP4Reader(file)
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "mp4: %s", filename)
	}
	log.Info("%s: %dx%d video, %v (media %v)", filename, info.size.X, info.size.Y, info.videoDuration, info.duration)

	return newPacer("mp4", r, info), nil
}

type mp4Reader struct {
	file    afero.File
	demuxer *mp4.Demuxer

	codecs []av.CodecData
	video  int
	size   image.Point
}

func newMP4Reader(file afero.File) (*mp4Reader, streamInfo, error) {
	var info streamInfo

	demuxer := mp4.NewDemuxer(file)
	codecs, err := demuxer.Streams()
	if err != nil {
		return nil, info, err
	}

	r := &mp4Reader{
		file:    file,
		demuxer: demuxer,
		codecs:  codecs,
		video:   -1,
	}
	for i, codec := range codecs {
		if vc, ok := codec.(av.VideoCodecData); ok && r.video < 0 {
			log.Debug("%v stream %d: %dx%d", codec.Type(), i, vc.Width(), vc.Height())
			r.video = i
			r.size = image.Pt(vc.Width(), vc.Height())
		} else {
			log.Debug("Skipping %v stream %d", codec.Type(), i)
		}
	}
	if r.video < 0 {
		return nil, info, ErrNoVideo
	}

	if info.duration, info.videoDuration, err = r.scan(); err != nil {
		return nil, info, err
	}
	info.size = r.size
	return r, info, nil
}

// scan reads every packet once and estimates each stream's duration as the
// last packet time plus the last packet interval. The demuxer is rewound
// afterwards.
func (r *mp4Reader) scan() (duration, videoDuration time.Duration, err error) {
	last := make([]time.Duration, len(r.codecs))
	step := make([]time.Duration, len(r.codecs))
	seen := make([]bool, len(r.codecs))

	for {
		pkt, err := r.demuxer.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, err
		}
		i := int(pkt.Idx)
		if i < 0 || i >= len(last) {
			continue
		}
		if seen[i] && pkt.Time > last[i] {
			step[i] = pkt.Time - last[i]
		}
		if pkt.Time >= last[i] {
			last[i] = pkt.Time
		}
		seen[i] = true
	}

	for i := range last {
		end := last[i] + step[i]
		if end > duration {
			duration = end
		}
		if i == r.video {
			videoDuration = end
		}
	}
	return duration, videoDuration, r.demuxer.SeekToTime(0)
}

func (r *mp4Reader) readFrame(reverse bool) (*Image, time.Duration, error) {
	if reverse {
		return nil, 0, ErrNotSupported
	}
	for {
		// Read the next packet from the file.
		pkt, err := r.demuxer.ReadPacket()
		if err != nil {
			return nil, 0, err
		}
		if int(pkt.Idx) != r.video {
			continue
		}
		return NewImage(pkt.Data, r.size, nil), pkt.Time, nil
	}
}

func (r *mp4Reader) seek(t time.Duration) error {
	return r.demuxer.SeekToTime(t)
}

func (r *mp4Reader) close() error {
	return r.file.Close()
}
