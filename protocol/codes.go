package protocol

import "fmt"

// Frame prefixes.
type Prefix uint16

const (
	PrefixCommand      Prefix = 0x55AA // host -> reader, 16 byte parameter
	PrefixCommandData  Prefix = 0x5AA5 // host -> reader, variable length
	PrefixResponse     Prefix = 0xAA55 // reader -> host, 16 byte payload
	PrefixResponseData Prefix = 0xA55A // reader -> host, variable length
)

// fixedPayload reports whether frames with this prefix always carry 16 bytes.
func (p Prefix) fixedPayload() bool {
	return p == PrefixCommand || p == PrefixResponse
}

func (p Prefix) String() string {
	switch p {
	case PrefixCommand:
		return "command"
	case PrefixCommandData:
		return "command data"
	case PrefixResponse:
		return "response"
	case PrefixResponseData:
		return "response data"
	default:
		return fmt.Sprintf("prefix(0x%04X)", uint16(p))
	}
}

// Command is a reader command code.
type Command uint16

// Reader commands.
const (
	CmdVerify                     Command = 0x0101
	CmdIdentify                   Command = 0x0102
	CmdEnroll                     Command = 0x0103
	CmdEnrollOneTime              Command = 0x0104
	CmdClearTemplate              Command = 0x0105
	CmdClearAllTemplate           Command = 0x0106
	CmdGetEmptyID                 Command = 0x0107
	CmdGetTemplateStatus          Command = 0x0108
	CmdGetBrokenTemplate          Command = 0x0109
	CmdReadTemplate               Command = 0x010A
	CmdWriteTemplate              Command = 0x010B
	CmdSetSecurityLevel           Command = 0x010C
	CmdGetSecurityLevel           Command = 0x010D
	CmdSetFingerTimeOut           Command = 0x010E
	CmdGetFingerTimeOut           Command = 0x010F
	CmdSetDeviceID                Command = 0x0110
	CmdGetDeviceID                Command = 0x0111
	CmdGetFWVersion               Command = 0x0112
	CmdFingerDetect               Command = 0x0113
	CmdSetBaudrate                Command = 0x0114
	CmdSetDuplicationCheck        Command = 0x0115
	CmdGetDuplicationCheck        Command = 0x0116
	CmdEnterStandbyState          Command = 0x0117
	CmdEnrollAndStoreInRAM        Command = 0x0118
	CmdGetEnrollData              Command = 0x0119
	CmdGetFeatureDataOfCapturedFP Command = 0x011A
	CmdVerifyDeviceIDAndFeature   Command = 0x011B
	CmdGetDeviceName              Command = 0x0121
	CmdGetEnrollCount             Command = 0x0128
	CmdFPCancel                   Command = 0x0130
	CmdTestConnection             Command = 0x0150
)

var commandNames = map[Command]string{
	CmdVerify:                     "Verify",
	CmdIdentify:                   "Identify",
	CmdEnroll:                     "Enroll",
	CmdEnrollOneTime:              "Enroll one time",
	CmdClearTemplate:              "Clear template",
	CmdClearAllTemplate:           "Clear all templates",
	CmdGetEmptyID:                 "Get empty ID",
	CmdGetTemplateStatus:          "Get template status",
	CmdGetBrokenTemplate:          "Get broken template",
	CmdReadTemplate:               "Read template",
	CmdWriteTemplate:              "Write template",
	CmdSetSecurityLevel:           "Set security level",
	CmdGetSecurityLevel:           "Security level",
	CmdSetFingerTimeOut:           "Set finger timeout",
	CmdGetFingerTimeOut:           "Finger timeout",
	CmdSetDeviceID:                "Set device ID",
	CmdGetDeviceID:                "Device ID",
	CmdGetFWVersion:               "Firmware version",
	CmdFingerDetect:               "Finger detect",
	CmdSetBaudrate:                "Set baudrate",
	CmdSetDuplicationCheck:        "Set duplication check",
	CmdGetDuplicationCheck:        "Duplication check",
	CmdEnterStandbyState:          "Enter standby",
	CmdEnrollAndStoreInRAM:        "Enroll and store in RAM",
	CmdGetEnrollData:              "Enroll data",
	CmdGetFeatureDataOfCapturedFP: "Feature data of captured fingerprint",
	CmdVerifyDeviceIDAndFeature:   "Verify device ID and feature",
	CmdGetDeviceName:              "Device name",
	CmdGetEnrollCount:             "Enroll count",
	CmdFPCancel:                   "Cancel",
	CmdTestConnection:             "Test connection",
}

func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return fmt.Sprintf("command(0x%04X)", uint16(c))
}

// enrollFamily reports whether the reader may answer an FPCancel with c.
func (c Command) enrollFamily() bool {
	return c == CmdEnroll || c == CmdEnrollAndStoreInRAM || c == CmdIdentify
}

// matches reports whether a response for got answers a request for want.
//
// A cancel is answered by whichever enroll-family operation it interrupted.
func (want Command) matches(got Command) bool {
	return want == got || (want == CmdFPCancel && got.enrollFamily())
}

// ReturnCode is the result code carried in responses.
type ReturnCode uint16

// Return codes.
const (
	RetSuccess                 ReturnCode = 0x00
	RetFail                    ReturnCode = 0x01
	RetVerify                  ReturnCode = 0x11
	RetIdentify                ReturnCode = 0x12
	RetTemplateEmpty           ReturnCode = 0x13
	RetTemplateNotEmpty        ReturnCode = 0x14
	RetAllTemplateEmpty        ReturnCode = 0x15
	RetEmptyIDNoExist          ReturnCode = 0x16
	RetBrokenIDNoExist         ReturnCode = 0x17
	RetInvalidTemplateData     ReturnCode = 0x18
	RetDuplicationID           ReturnCode = 0x19
	RetBadQuality              ReturnCode = 0x21
	RetSmallLines              ReturnCode = 0x22
	RetTimeout                 ReturnCode = 0x23
	RetNotAuthorized           ReturnCode = 0x24
	RetGeneralize              ReturnCode = 0x30
	RetFPCancel                ReturnCode = 0x41
	RetInternal                ReturnCode = 0x50
	RetMemory                  ReturnCode = 0x51
	RetException               ReturnCode = 0x52
	RetInvalidTemplateNo       ReturnCode = 0x60
	RetInvalidSecurityValue    ReturnCode = 0x61
	RetInvalidTimeOut          ReturnCode = 0x62
	RetInvalidBaudrate         ReturnCode = 0x63
	RetDeviceIDEmpty           ReturnCode = 0x64
	RetInvalidDuplicationValue ReturnCode = 0x65
	RetInvalidParam            ReturnCode = 0x70
	RetNoRelease               ReturnCode = 0x71
)

var returnCodeNames = map[ReturnCode]string{
	RetSuccess:                 "Success",
	RetFail:                    "Fail",
	RetVerify:                  "Verify failed",
	RetIdentify:                "Identify failed",
	RetTemplateEmpty:           "Template empty",
	RetTemplateNotEmpty:        "Template not empty",
	RetAllTemplateEmpty:        "All templates empty",
	RetEmptyIDNoExist:          "No empty ID",
	RetBrokenIDNoExist:         "No broken ID",
	RetInvalidTemplateData:     "Invalid template data",
	RetDuplicationID:           "Duplicated ID",
	RetBadQuality:              "Bad quality",
	RetSmallLines:              "Small lines",
	RetTimeout:                 "Timeout",
	RetNotAuthorized:           "Not authorized",
	RetGeneralize:              "Generalization failed",
	RetFPCancel:                "Canceled",
	RetInternal:                "Internal error",
	RetMemory:                  "Memory error",
	RetException:               "Exception",
	RetInvalidTemplateNo:       "Invalid template number",
	RetInvalidSecurityValue:    "Invalid security level",
	RetInvalidTimeOut:          "Invalid timeout",
	RetInvalidBaudrate:         "Invalid baudrate",
	RetDeviceIDEmpty:           "Device ID empty",
	RetInvalidDuplicationValue: "Invalid duplication value",
	RetInvalidParam:            "Invalid parameter",
	RetNoRelease:               "Finger not released",
}

func (r ReturnCode) String() string {
	if s, ok := returnCodeNames[r]; ok {
		return s
	}
	return fmt.Sprintf("return code(0x%04X)", uint16(r))
}

// GDCode is the generalization/decision code reported while enrolling.
type GDCode uint16

const (
	GDNeedFirstSweep    GDCode = 0xFFF1
	GDNeedSecondSweep   GDCode = 0xFFF2
	GDNeedThirdSweep    GDCode = 0xFFF3
	GDNeedReleaseFinger GDCode = 0xFFF4
)

func (g GDCode) String() string {
	switch g {
	case GDNeedFirstSweep:
		return "Need first sweep"
	case GDNeedSecondSweep:
		return "Need second sweep"
	case GDNeedThirdSweep:
		return "Need third sweep"
	case GDNeedReleaseFinger:
		return "Need release finger"
	default:
		return fmt.Sprintf("gd(0x%04X)", uint16(g))
	}
}

// TemplateStatus is the occupancy of a template slot.
type TemplateStatus uint16

const (
	TemplateEmpty    TemplateStatus = 0x00
	TemplateNotEmpty TemplateStatus = 0x01
)

func (t TemplateStatus) String() string {
	switch t {
	case TemplateEmpty:
		return "Empty"
	case TemplateNotEmpty:
		return "Not empty"
	default:
		return fmt.Sprintf("template status(0x%04X)", uint16(t))
	}
}

// ConnectionStatus is the state of a Reader connection.
type ConnectionStatus int

// Connection states.
const (
	Disconnected ConnectionStatus = iota
	Connecting
	Connected
	Closing
)

func (s ConnectionStatus) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// EnrollState is the progress of an enrollment at the reader.
type EnrollState int

const (
	EnrollIdle EnrollState = iota
	EnrollWaitingFirstSweep
	EnrollWaitingSecondSweep
	EnrollWaitingThirdSweep
	EnrollWaitingFingerRelease
	EnrollSuccess
	EnrollFailed
	EnrollCanceled
	EnrollTimedOut
)

// Terminal reports whether no further enrollment responses are expected.
func (s EnrollState) Terminal() bool {
	return s >= EnrollSuccess
}

func (s EnrollState) String() string {
	switch s {
	case EnrollIdle:
		return "idle"
	case EnrollWaitingFirstSweep:
		return "waiting first sweep"
	case EnrollWaitingSecondSweep:
		return "waiting second sweep"
	case EnrollWaitingThirdSweep:
		return "waiting third sweep"
	case EnrollWaitingFingerRelease:
		return "waiting finger release"
	case EnrollSuccess:
		return "success"
	case EnrollFailed:
		return "failed"
	case EnrollCanceled:
		return "canceled"
	case EnrollTimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}
