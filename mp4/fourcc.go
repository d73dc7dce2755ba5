// Package mp4 implements the ISO/IEC 14496-12 box tree used to assemble
// fragmented MP4 init segments and media segments: a value-tree of boxes
// built depth-first and serialized in one pass, with no back-pointers (the
// trun.data_offset / saio.offset fix-up is done by patching known byte
// offsets after the tree is flattened, never by pointer games).
//
// The Box/Mp4Box* method-set idiom below follows the box-construction style
// the teacher library (github.com/go-webdl/smoothstreaming) used against
// its own github.com/go-webdl/mp4 dependency; since that dependency is not
// independently fetchable outside its retrieval pack, the box tree itself
// is implemented here from the ISO/IEC 14496-12 box catalog named in
// spec.md §6.2.
package mp4

import "fmt"

// FourCC is a 4-byte box type, brand, codec, or scheme identifier.
type FourCC [4]byte

func (f FourCC) String() string { return string(f[:]) }

func fcc(s string) FourCC {
	var f FourCC
	copy(f[:], s)
	return f
}

// Box type identifiers (spec.md §6.2).
var (
	FtypBoxType = fcc("ftyp")
	StypBoxType = fcc("styp")
	MoovBoxType = fcc("moov")
	MvhdBoxType = fcc("mvhd")
	TrakBoxType = fcc("trak")
	TkhdBoxType = fcc("tkhd")
	MdiaBoxType = fcc("mdia")
	MdhdBoxType = fcc("mdhd")
	HdlrBoxType = fcc("hdlr")
	MinfBoxType = fcc("minf")
	VmhdBoxType = fcc("vmhd")
	SmhdBoxType = fcc("smhd")
	NmhdBoxType = fcc("nmhd")
	StblBoxType = fcc("stbl")
	StsdBoxType = fcc("stsd")
	SttsBoxType = fcc("stts")
	CttsBoxType = fcc("ctts")
	StscBoxType = fcc("stsc")
	StcoBoxType = fcc("stco")
	Co64BoxType = fcc("co64")
	StszBoxType = fcc("stsz")
	DinfBoxType = fcc("dinf")
	DrefBoxType = fcc("dref")
	UrlBoxType  = fcc("url ")
	MvexBoxType = fcc("mvex")
	TrexBoxType = fcc("trex")
	PsshBoxType = fcc("pssh")
	SinfBoxType = fcc("sinf")
	FrmaBoxType = fcc("frma")
	SchmBoxType = fcc("schm")
	SchiBoxType = fcc("schi")
	TencBoxType = fcc("tenc")
	EncvBoxType = fcc("encv")
	EncaBoxType = fcc("enca")
	EsdsBoxType = fcc("esds")

	MoofBoxType = fcc("moof")
	MfhdBoxType = fcc("mfhd")
	TrafBoxType = fcc("traf")
	TfhdBoxType = fcc("tfhd")
	TfdtBoxType = fcc("tfdt")
	TrunBoxType = fcc("trun")
	SaizBoxType = fcc("saiz")
	SaioBoxType = fcc("saio")
	SencBoxType = fcc("senc")
	MdatBoxType = fcc("mdat")
	SidxBoxType = fcc("sidx")
	EmsgBoxType = fcc("emsg")
)

// Brands.
var (
	IsomFourCC = fcc("isom")
	Iso6FourCC = fcc("iso6")
	Iso8FourCC = fcc("iso8")
	MsdhFourCC = fcc("msdh")
	MsixFourCC = fcc("msix")
	Cmfc       = fcc("cmfc")
	Dash       = fcc("dash")
)

// Handler types.
var (
	VideFourCC = fcc("vide")
	SounFourCC = fcc("soun")
	SubtFourCC = fcc("subt")
	MetaFourCC = fcc("meta")
)

// Codec sample-entry FourCCs.
var (
	Avc1FourCC = fcc("avc1")
	Avc3FourCC = fcc("avc3")
	Hvc1FourCC = fcc("hvc1")
	Hev1FourCC = fcc("hev1")
	Mp4aFourCC = fcc("mp4a")
	Ac3FourCC  = fcc("ac-3")
	Ec3FourCC  = fcc("ec-3")
	OpusFourCC = fcc("Opus")
	StppFourCC = fcc("stpp")
	WvttFourCC = fcc("wvtt")
)

// Protection scheme types (ISO/IEC 23001-7).
var (
	CencFourCC = fcc("cenc")
	Cbc1FourCC = fcc("cbc1")
	CensFourCC = fcc("cens")
	CbcsFourCC = fcc("cbcs")
)

// ParseScheme maps a scheme name to its FourCC, returning an error for
// anything outside the four common-encryption schemes this module
// supports.
func ParseScheme(name string) (FourCC, error) {
	switch name {
	case "cenc":
		return CencFourCC, nil
	case "cbc1":
		return Cbc1FourCC, nil
	case "cens":
		return CensFourCC, nil
	case "cbcs":
		return CbcsFourCC, nil
	default:
		return FourCC{}, fmt.Errorf("mp4: unknown protection scheme %q", name)
	}
}
