package mp4mux

import (
	"github.com/go-webdl/packager/media"
	"github.com/go-webdl/packager/mp4"
	"github.com/go-webdl/packager/status"
)

// buildMoov assembles the init segment's moov box for one track: mvhd,
// trak(tkhd, mdia(mdhd, hdlr, minf(media-header, dinf(dref(url)),
// stbl(stsd(sample entry), empty stts/stsc/stco/stsz))), mvex(trex).
// pssh boxes are not placed here; the muxer writes them after moov.
// Encrypted streams get their sample entry wrapped as enc{v,a}/sinf/frma/
// schm/schi/tenc per CENC (ISO/IEC 23001-7 §7).
func buildMoov(info *media.StreamInfo) (*mp4.MovieBox, error) {
	moov := mp4.NewMovieBox()

	mvhd := mp4.NewMvhd()
	mvhd.Timescale = info.Timescale
	mvhd.Duration = info.Duration
	mvhd.Rate = 1 << 16
	mvhd.Volume = 1 << 8
	mvhd.Matrix = [9]int32{1 << 16, 0, 0, 0, 1 << 16, 0, 0, 0, 1 << 30}
	mvhd.NextTrackID = info.TrackID + 1
	if err := moov.Mp4BoxAppend(mvhd); err != nil {
		return nil, err
	}

	trak, err := buildTrak(info)
	if err != nil {
		return nil, err
	}
	if err := moov.Mp4BoxAppend(trak); err != nil {
		return nil, err
	}

	mvex := mp4.NewMvex()
	trex := mp4.NewTrex()
	trex.TrackID = info.TrackID
	if err := mvex.Mp4BoxAppend(trex); err != nil {
		return nil, err
	}
	if err := moov.Mp4BoxAppend(mvex); err != nil {
		return nil, err
	}

	return moov, nil
}

func buildTrak(info *media.StreamInfo) (*mp4.TrackBox, error) {
	trak := mp4.NewTrak()

	tkhd := mp4.NewTkhd()
	tkhd.TrackID = info.TrackID
	tkhd.Duration = info.Duration
	tkhd.Flags = mp4.FlagTkhdTrackEnabled | mp4.FlagTkhdTrackInMovie
	tkhd.Width = info.Width
	tkhd.Height = info.Height
	tkhd.Matrix = [9]int32{1 << 16, 0, 0, 0, 1 << 16, 0, 0, 0, 1 << 30}
	if info.Kind == media.Audio {
		tkhd.Volume = 1 << 8
	}
	if err := trak.Mp4BoxAppend(tkhd); err != nil {
		return nil, err
	}

	mdia := mp4.NewMdia()

	mdhd := mp4.NewMdhd()
	mdhd.Timescale = info.Timescale
	mdhd.Duration = info.Duration
	base, _ := info.Language.Base()
	mdhd.Language = mp4.PackLanguage(base.ISO3())
	if err := mdia.Mp4BoxAppend(mdhd); err != nil {
		return nil, err
	}

	hdlr := mp4.NewHdlr()
	switch info.Kind {
	case media.Video:
		hdlr.HandlerType = mp4.VideFourCC
		hdlr.Name = "VideoHandler"
	case media.Audio:
		hdlr.HandlerType = mp4.SounFourCC
		hdlr.Name = "SoundHandler"
	case media.Text:
		hdlr.HandlerType = mp4.SubtFourCC
		hdlr.Name = "SubtitleHandler"
	}
	if err := mdia.Mp4BoxAppend(hdlr); err != nil {
		return nil, err
	}

	minf := mp4.NewMinf()
	var mediaHeader mp4.Box
	switch info.Kind {
	case media.Video:
		mediaHeader = mp4.NewVmhd()
	case media.Audio:
		mediaHeader = mp4.NewSmhd()
	case media.Text:
		mediaHeader = mp4.NewNmhd()
	}
	if err := minf.Mp4BoxAppend(mediaHeader); err != nil {
		return nil, err
	}

	dinf := mp4.NewDinf()
	dref := mp4.NewDref()
	if err := dref.Mp4BoxAppend(mp4.NewUrlBox()); err != nil {
		return nil, err
	}
	if err := dinf.Mp4BoxAppend(dref); err != nil {
		return nil, err
	}
	if err := minf.Mp4BoxAppend(dinf); err != nil {
		return nil, err
	}

	stbl := mp4.NewStbl()
	stsd := mp4.NewStsd()
	entry, err := buildSampleEntry(info)
	if err != nil {
		return nil, err
	}
	if err := stsd.Mp4BoxAppend(entry); err != nil {
		return nil, err
	}
	if err := stbl.Mp4BoxAppend(stsd); err != nil {
		return nil, err
	}
	if err := stbl.Mp4BoxAppend(mp4.NewStts()); err != nil {
		return nil, err
	}
	if err := stbl.Mp4BoxAppend(mp4.NewStsc()); err != nil {
		return nil, err
	}
	if err := stbl.Mp4BoxAppend(mp4.NewStco()); err != nil {
		return nil, err
	}
	if err := stbl.Mp4BoxAppend(mp4.NewStsz()); err != nil {
		return nil, err
	}
	if err := minf.Mp4BoxAppend(stbl); err != nil {
		return nil, err
	}

	if err := mdia.Mp4BoxAppend(minf); err != nil {
		return nil, err
	}
	if err := trak.Mp4BoxAppend(mdia); err != nil {
		return nil, err
	}
	return trak, nil
}

// buildSampleEntry returns the stsd entry for info, wrapping it in
// enc{v,a}/sinf/frma/schm/schi/tenc when info is encrypted.
func buildSampleEntry(info *media.StreamInfo) (mp4.Box, error) {
	plainType := info.Codec
	entryType := plainType
	if info.IsEncrypted {
		switch info.Kind {
		case media.Video:
			entryType = mp4.EncvBoxType
		case media.Audio:
			entryType = mp4.EncaBoxType
		}
	}

	var entry mp4.Box
	switch info.Kind {
	case media.Video:
		v := &mp4.VisualSampleEntryBox{Width: uint16(info.Width), Height: uint16(info.Height), DataReferenceIndex: 1}
		v.Mp4BoxSetType(entryType)
		v.HorizResolution = 0x00480000
		v.VertResolution = 0x00480000
		v.FrameCount = 1
		v.Depth = 0x0018
		if len(info.CodecConfig) > 0 {
			if err := v.Mp4BoxAppend(mp4.NewRawBox(configBoxType(plainType), info.CodecConfig)); err != nil {
				return nil, err
			}
		}
		if info.IsEncrypted {
			sinf, err := buildSinf(plainType, info)
			if err != nil {
				return nil, err
			}
			if err := v.Mp4BoxAppend(sinf); err != nil {
				return nil, err
			}
		}
		entry = v
	case media.Audio:
		a := &mp4.AudioSampleEntryBox{ChannelCount: info.ChannelCount, SampleSize: 16, SampleRate: info.SampleRate << 16, DataReferenceIndex: 1}
		a.Mp4BoxSetType(entryType)
		if len(info.CodecConfig) > 0 {
			if err := a.Mp4BoxAppend(mp4.NewRawBox(configBoxType(plainType), info.CodecConfig)); err != nil {
				return nil, err
			}
		}
		if info.IsEncrypted {
			sinf, err := buildSinf(plainType, info)
			if err != nil {
				return nil, err
			}
			if err := a.Mp4BoxAppend(sinf); err != nil {
				return nil, err
			}
		}
		entry = a
	case media.Text:
		x := &mp4.XMLSubtitleSampleEntryBox{DataReferenceIndex: 1, Namespace: "http://www.w3.org/ns/ttml"}
		x.Mp4BoxSetType(mp4.StppFourCC)
		entry = x
	default:
		return nil, status.Newf(status.InvalidArgument, nil, "mp4mux: unsupported stream kind %v", info.Kind)
	}
	return entry, nil
}

// configBoxType maps a codec FourCC to its codec-config box type. AVC/HEVC
// carry avcC/hvcC; AAC carries esds; everything else (Opus, AC-3/EC-3) has
// no separate config box and is handled by the CodecConfig-less path
// (callers leave CodecConfig empty for those codecs).
func configBoxType(codec mp4.FourCC) mp4.FourCC {
	switch codec {
	case mp4.Avc1FourCC, mp4.Avc3FourCC:
		return mp4.FourCC{'a', 'v', 'c', 'C'}
	case mp4.Hvc1FourCC, mp4.Hev1FourCC:
		return mp4.FourCC{'h', 'v', 'c', 'C'}
	case mp4.Mp4aFourCC:
		return mp4.EsdsBoxType
	default:
		return mp4.FourCC{'u', 'u', 'i', 'd'}
	}
}

func buildSinf(originalFormat mp4.FourCC, info *media.StreamInfo) (*mp4.ProtectionSchemeInfoBox, error) {
	sinf := mp4.NewSinf()

	frma := mp4.NewFrma()
	frma.DataFormat = originalFormat
	if err := sinf.Mp4BoxAppend(frma); err != nil {
		return nil, err
	}

	schm := mp4.NewSchm()
	schm.SchemeType = info.Encryption.Scheme
	schm.SchemeVersion = 0x00010000
	if err := sinf.Mp4BoxAppend(schm); err != nil {
		return nil, err
	}

	schi := mp4.NewSchi()
	tenc := mp4.NewTenc()
	tenc.DefaultIsProtected = 1
	tenc.DefaultPerSampleIVSize = info.Encryption.PerSampleIVSize
	tenc.DefaultKID = info.Encryption.KeyID
	if info.Encryption.PerSampleIVSize == 0 {
		tenc.DefaultConstantIV = info.Encryption.ConstantIV
	}
	if info.Encryption.CryptByteBlock != 0 || info.Encryption.SkipByteBlock != 0 {
		tenc.Version = 1
		tenc.DefaultCryptByteBlock = info.Encryption.CryptByteBlock
		tenc.DefaultSkipByteBlock = info.Encryption.SkipByteBlock
	}
	if err := schi.Mp4BoxAppend(tenc); err != nil {
		return nil, err
	}
	if err := sinf.Mp4BoxAppend(schi); err != nil {
		return nil, err
	}

	return sinf, nil
}
