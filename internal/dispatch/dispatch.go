// Package dispatch implements the protocol's subfunction dispatcher: it
// parses a validated request frame, consults the idempotency cache,
// selects a handler by opcode, and serializes the reply frame.
//
// Grounded in ethersrv.c's process(), which this package follows
// function-for-opcode, and the resolver/fsops/handlecache/answercache
// packages it wires together.
package dispatch

import (
	"strings"

	"github.com/oerg866/ethersrv-866/internal/answercache"
	"github.com/oerg866/ethersrv-866/internal/config"
	"github.com/oerg866/ethersrv-866/internal/fcb"
	"github.com/oerg866/ethersrv-866/internal/fsops"
	"github.com/oerg866/ethersrv-866/internal/handlecache"
	"github.com/oerg866/ethersrv-866/internal/props"
	"github.com/oerg866/ethersrv-866/internal/resolver"
	"github.com/oerg866/ethersrv-866/internal/wire"
	"github.com/sirupsen/logrus"
)

// diskSpaceClamp is 2GiB-1, the largest value the reference client can
// parse; both total and free bytes are clamped to it before being
// shifted into 32KiB clusters.
const diskSpaceClamp = 2*1024*1024*1024 - 1

const clusterShift = 15 // 32KiB clusters

// Server owns every piece of mutable state the dispatcher touches: the
// drive table, the handle cache, and the answer cache. It is used from
// exactly one goroutine, matching the protocol's single-threaded model.
type Server struct {
	Drives  config.DriveTable
	Handles *handlecache.Cache
	Answers *answercache.Cache
	OwnMAC  [6]byte
	Log     *logrus.Logger
}

// New returns a Server ready to dispatch requests.
func New(drives config.DriveTable, ownMAC [6]byte, log *logrus.Logger) *Server {
	return &Server{
		Drives:  drives,
		Handles: handlecache.New(),
		Answers: answercache.New(),
		OwnMAC:  ownMAC,
		Log:     log,
	}
}

func (s *Server) logf(level logrus.Level, fields logrus.Fields, msg string) {
	if s.Log == nil {
		return
	}
	s.Log.WithFields(fields).Log(level, msg)
}

// Dispatch runs the five-step dispatcher procedure over a single,
// already link-layer-validated frame (see internal/frameio for the
// MAC/ethertype/version/checksum screening that happens before this is
// called) and returns the reply frame, or ok=false meaning "do not
// reply" -- the client will retransmit.
func (s *Server) Dispatch(frame []byte) (reply []byte, ok bool) {
	if len(frame) < wire.HeaderLen {
		return nil, false
	}

	var clientMAC [6]byte
	copy(clientMAC[:], frame[wire.OffSrcMAC:wire.OffSrcMAC+6])
	seq := frame[wire.OffSequence]

	if cached, found := s.Answers.Lookup(clientMAC); found && cached.Frame[wire.OffSequence] == seq {
		return append([]byte(nil), cached.Frame...), true
	}

	reply = make([]byte, wire.HeaderLen, wire.MaxFrameLen)
	copy(reply, frame[:wire.HeaderLen])
	copy(reply[wire.OffDestMAC:], clientMAC[:])
	copy(reply[wire.OffSrcMAC:], s.OwnMAC[:])

	driveIdx := frame[wire.OffDriveQuery] & 0x1F
	query := frame[wire.OffOpcode]

	if driveIdx < config.FirstDrive || int(driveIdx) >= len(s.Drives) || !s.Drives[driveIdx].Mapped {
		s.logf(logrus.WarnLevel, logrus.Fields{"drive": driveIdx, "opcode": query}, "request for unmapped drive")
		s.Answers.Invalidate(s.Answers.SlotFor(clientMAC))
		return nil, false
	}
	drive := &s.Drives[driveIdx]

	var payload []byte
	if len(frame) > wire.OffPayload {
		payload = frame[wire.OffPayload:]
	}

	s.logf(logrus.DebugLevel, logrus.Fields{"drive": driveIdx, "opcode": query, "root": drive.Root}, "dispatching request")
	ax, body := s.handle(query, drive, payload)
	if ax == axNoReply {
		s.Answers.Invalidate(s.Answers.SlotFor(clientMAC))
		return nil, false
	}

	wire.PutLE16(reply[wire.OffReplyAX:], ax)
	reply = append(reply, body...)

	slot := s.Answers.SlotFor(clientMAC)
	s.Answers.Store(slot, clientMAC, reply)
	return reply, true
}

// axNoReply is returned by handle for an unsupported opcode; Dispatch
// sends no reply for it.
const axNoReply = 0xFFFF

func (s *Server) handle(query byte, drive *config.DriveEntry, payload []byte) (ax uint16, body []byte) {
	switch query {
	case wire.OpInstallChk:
		return wire.ErrOK, nil
	case wire.OpRmdir:
		return s.opRmdir(drive, payload)
	case wire.OpMkdir:
		return s.opMkdir(drive, payload)
	case wire.OpChdir:
		return s.opChdir(drive, payload)
	case wire.OpCloseFile:
		return wire.ErrOK, nil
	case wire.OpCommitFile:
		return wire.ErrOK, nil
	case wire.OpReadFile:
		return s.opReadFile(payload)
	case wire.OpWriteFile:
		return s.opWriteFile(payload)
	case wire.OpLock, wire.OpUnlock:
		return wire.ErrOK, nil
	case wire.OpDiskSpace:
		return s.opDiskSpace(drive)
	case wire.OpSetAttr:
		return s.opSetAttr(drive, payload)
	case wire.OpGetAttr:
		return s.opGetAttr(drive, payload)
	case wire.OpRename:
		return s.opRename(drive, payload)
	case wire.OpDelete:
		return s.opDelete(drive, payload)
	case wire.OpOpen:
		return s.opOpen(drive, payload)
	case wire.OpCreate:
		return s.opCreate(drive, payload)
	case wire.OpFindFirst:
		return s.opFindFirst(drive, payload)
	case wire.OpFindNext:
		return s.opFindNext(drive, payload)
	case wire.OpSeekFromEnd:
		return s.opSeekFromEnd(payload)
	case wire.OpSpOpenFile:
		return s.opSpOpenFile(drive, payload)
	default:
		s.logf(logrus.WarnLevel, logrus.Fields{"opcode": query}, "unsupported opcode")
		return axNoReply, nil
	}
}

// readCString reads an ASCII string up to the first NUL byte, or to the
// end of b if there is none.
func readCString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// normalizePath lower-cases a DFS path and converts backslashes to
// forward slashes, returning the drive-relative remainder (without its
// leading slash) and whether a leading slash was present at all, per
// §4.3's "missing leading / after root is a hard error".
func normalizePath(raw string) (relPath string, ok bool) {
	s := strings.ToLower(strings.ReplaceAll(raw, "\\", "/"))
	if !strings.HasPrefix(s, "/") {
		return "", false
	}
	return strings.TrimPrefix(s, "/"), true
}

// splitDirAndMask separates the final path component (the FindFirst
// search mask, or a plain filename) from the directory part preceding
// it.
func splitDirAndMask(relPath string) (dirRel, last string) {
	idx := strings.LastIndexByte(relPath, '/')
	if idx < 0 {
		return "", relPath
	}
	return relPath[:idx], relPath[idx+1:]
}

func (s *Server) resolvePath(drive *config.DriveEntry, raw string) (host string, ok bool) {
	rel, okSlash := normalizePath(raw)
	if !okSlash {
		return "", false
	}
	return resolver.Resolve(drive.Root, rel)
}

func (s *Server) opRmdir(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	host, ok := s.resolvePath(drive, readCString(payload))
	if !ok {
		return wire.ErrPathNotFound, nil
	}
	if err := fsops.Rmdir(host); err != nil {
		return wire.ErrGeneralFailure, nil
	}
	return wire.ErrOK, nil
}

func (s *Server) opMkdir(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	// the resolver's failure path still returns a usable host path with
	// the unresolved final component appended verbatim -- that partial
	// result is exactly what MKDIR needs to create.
	host, _ := s.resolvePath(drive, readCString(payload))
	if host == "" {
		return wire.ErrPathNotFound, nil
	}
	if err := fsops.Mkdir(host); err != nil {
		return wire.ErrGeneralFailure, nil
	}
	return wire.ErrOK, nil
}

func (s *Server) opChdir(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	raw := readCString(payload)
	if raw == "" {
		return wire.ErrPathNotFound, nil
	}
	host, ok := s.resolvePath(drive, raw)
	if !ok {
		return wire.ErrPathNotFound, nil
	}
	if err := fsops.Chdir(host); err != nil {
		return wire.ErrPathNotFound, nil
	}
	return wire.ErrOK, nil
}

func (s *Server) opReadFile(payload []byte) (uint16, []byte) {
	if len(payload) < 8 {
		return wire.ErrAccessDenied, nil
	}
	offset := wire.LE32(payload[0:4])
	handle := wire.LE16(payload[4:6])
	length := wire.LE16(payload[6:8])

	path, ok := s.Handles.NameOf(handle)
	if !ok {
		return wire.ErrAccessDenied, nil
	}
	data, err := fsops.ReadFile(path, int64(offset), int(length))
	if err != nil {
		return wire.ErrAccessDenied, nil
	}
	return wire.ErrOK, data
}

func (s *Server) opWriteFile(payload []byte) (uint16, []byte) {
	if len(payload) < 6 {
		return wire.ErrAccessDenied, nil
	}
	offset := wire.LE32(payload[0:4])
	handle := wire.LE16(payload[4:6])
	data := payload[6:]

	path, ok := s.Handles.NameOf(handle)
	if !ok {
		return wire.ErrAccessDenied, nil
	}
	n, err := fsops.WriteFile(path, int64(offset), data)
	if err != nil {
		return wire.ErrAccessDenied, nil
	}
	out := make([]byte, 2)
	wire.PutLE16(out, uint16(n))
	return wire.ErrOK, out
}

func (s *Server) opDiskSpace(drive *config.DriveEntry) (uint16, []byte) {
	total, free, err := fsops.DiskInfo(drive.Root)
	if err != nil {
		return wire.ErrGeneralFailure, nil
	}
	if total > diskSpaceClamp {
		total = diskSpaceClamp
	}
	if free > diskSpaceClamp {
		free = diskSpaceClamp
	}

	body := make([]byte, 6)
	wire.PutLE16(body[0:2], uint16(total>>clusterShift))  // BX
	wire.PutLE16(body[2:4], 1<<clusterShift)              // CX, bytes/sector
	wire.PutLE16(body[4:6], uint16(free>>clusterShift))   // DX
	return 1, body                                        // AX=1: sectors/cluster|media, not an error code
}

func (s *Server) opSetAttr(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	if len(payload) < 1 {
		return wire.ErrFileNotFound, nil
	}
	attr := payload[0]
	host, ok := s.resolvePath(drive, readCString(payload[1:]))
	if !ok {
		return wire.ErrFileNotFound, nil
	}
	if err := fsops.SetAttr(host, attr, drive.FAT); err != nil {
		return wire.ErrFileNotFound, nil
	}
	return wire.ErrOK, nil
}

func (s *Server) opGetAttr(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	host, ok := s.resolvePath(drive, readCString(payload))
	if !ok {
		return wire.ErrFileNotFound, nil
	}
	p, found := fsops.GetAttr(host, drive.FAT)
	if !found {
		return wire.ErrFileNotFound, nil
	}
	body := make([]byte, 9)
	wire.PutLE32(body[0:4], p.Time)
	wire.PutLE32(body[4:8], p.Size)
	body[8] = p.Attr
	return wire.ErrOK, body
}

func (s *Server) opRename(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	if len(payload) < 1 {
		return wire.ErrFileNotFound, nil
	}
	srcLen := int(payload[0])
	if len(payload) < 1+srcLen {
		return wire.ErrFileNotFound, nil
	}
	srcRaw := string(payload[1 : 1+srcLen])
	dstRaw := readCString(payload[1+srcLen:])

	srcHost, ok := s.resolvePath(drive, srcRaw)
	if !ok {
		return wire.ErrFileNotFound, nil
	}

	// the destination existence check, and the rename itself, are
	// performed against the lower-cased raw path, not a host-resolved
	// one: a case-variant existing file on a case-sensitive host can
	// evade this check. Preserved as observed in the original.
	dstRel, okSlash := normalizePath(dstRaw)
	if !okSlash {
		return wire.ErrFileNotFound, nil
	}
	dstHost := drive.Root + "/" + dstRel

	if _, found := fsops.GetAttr(dstHost, drive.FAT); found {
		return wire.ErrAccessDenied, nil
	}
	if err := fsops.Rename(srcHost, dstHost); err != nil {
		return wire.ErrGeneralFailure, nil
	}
	return wire.ErrOK, nil
}

func (s *Server) opDelete(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	raw := readCString(payload)
	rel, okSlash := normalizePath(raw)
	if !okSlash {
		return wire.ErrFileNotFound, nil
	}

	if strings.ContainsRune(rel, '?') {
		dirRel, maskTok := splitDirAndMask(rel)
		dirHost, ok := resolver.Resolve(drive.Root, dirRel)
		if !ok {
			return wire.ErrFileNotFound, nil
		}
		if _, err := fsops.DeleteMatching(dirHost, fcb.ToFCB(maskTok)); err != nil {
			return wire.ErrFileNotFound, nil
		}
		return wire.ErrOK, nil
	}

	host, ok := resolver.Resolve(drive.Root, rel)
	if !ok {
		return wire.ErrFileNotFound, nil
	}
	p, found := fsops.GetAttr(host, drive.FAT)
	if !found {
		return wire.ErrFileNotFound, nil
	}
	if fsops.IsReadOnly(p.Attr) {
		return wire.ErrAccessDenied, nil
	}
	if err := fsops.DeleteFile(host); err != nil {
		return wire.ErrFileNotFound, nil
	}
	return wire.ErrOK, nil
}

// writeOpenStyleReply serializes the 25-byte body shared by OPEN,
// CREATE and SPOPENFILE: attr, FCB, time, size, handle, a small result
// code, and the resulting open mode.
func writeOpenStyleReply(p props.FileProps, handle uint16, result uint16, openMode byte) []byte {
	body := make([]byte, 25)
	body[0] = p.Attr
	copy(body[1:12], p.FCBName[:])
	wire.PutLE32(body[12:16], p.Time)
	wire.PutLE32(body[16:20], p.Size)
	wire.PutLE16(body[20:22], handle)
	wire.PutLE16(body[22:24], result)
	body[24] = openMode
	return body
}

func (s *Server) opOpen(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	if len(payload) < 6 {
		return wire.ErrFileNotFound, nil
	}
	openMode := payload[4:6]
	raw := readCString(payload[6:])
	host, ok := s.resolvePath(drive, raw)
	if !ok {
		return wire.ErrFileNotFound, nil
	}
	p, found := fsops.GetAttr(host, drive.FAT)
	if !found || p.IsDir || p.Attr&props.AttrVolume != 0 {
		return wire.ErrFileNotFound, nil
	}
	handle := s.Handles.Intern(host)
	if handle == handlecache.NoHandle {
		return wire.ErrFileNotFound, nil
	}
	return wire.ErrOK, writeOpenStyleReply(p, handle, 1, openMode[0])
}

func (s *Server) opCreate(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	if len(payload) < 6 {
		return wire.ErrPathNotFound, nil
	}
	attr := byte(wire.LE16(payload[0:2]))
	raw := readCString(payload[6:])
	rel, okSlash := normalizePath(raw)
	if !okSlash {
		return wire.ErrPathNotFound, nil
	}
	dirRel, name := splitDirAndMask(rel)
	dirHost, ok := resolver.Resolve(drive.Root, dirRel)
	if !ok {
		return wire.ErrPathNotFound, nil
	}
	p, err := fsops.CreateFile(dirHost, name, attr, drive.FAT)
	if err != nil {
		return wire.ErrPathNotFound, nil
	}
	handle := s.Handles.Intern(dirHost + "/" + name)
	return wire.ErrOK, writeOpenStyleReply(p, handle, 2, 2)
}

func (s *Server) opSpOpenFile(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	if len(payload) < 6 {
		return wire.ErrFileNotFound, nil
	}
	attr := byte(wire.LE16(payload[0:2]))
	action := wire.LE16(payload[2:4])
	openMode := payload[4:6]
	raw := readCString(payload[6:])
	rel, okSlash := normalizePath(raw)
	if !okSlash {
		return wire.ErrFileNotFound, nil
	}

	createIfMissing := action&0xF0 == 0x10
	openIfExists := action&0x0F == 0x01
	truncateIfExists := action&0x0F == 0x02
	if !openIfExists && !truncateIfExists && !createIfMissing {
		return wire.ErrFileNotFound, nil
	}

	host, found := resolver.Resolve(drive.Root, rel)
	if found {
		p, ok := fsops.GetAttr(host, drive.FAT)
		if !ok {
			found = false
		} else if truncateIfExists {
			if _, err := fsops.WriteFile(host, 0, nil); err != nil {
				return wire.ErrAccessDenied, nil
			}
			p, _ = fsops.GetAttr(host, drive.FAT)
			handle := s.Handles.Intern(host)
			return wire.ErrOK, writeOpenStyleReply(p, handle, 3, openMode[0])
		} else if openIfExists {
			handle := s.Handles.Intern(host)
			return wire.ErrOK, writeOpenStyleReply(p, handle, 1, openMode[0])
		}
	}

	if !createIfMissing {
		return wire.ErrFileNotFound, nil
	}

	dirRel, name := splitDirAndMask(rel)
	dirHost, ok := resolver.Resolve(drive.Root, dirRel)
	if !ok {
		return wire.ErrPathNotFound, nil
	}
	p, err := fsops.CreateFile(dirHost, name, attr, drive.FAT)
	if err != nil {
		return wire.ErrPathNotFound, nil
	}
	handle := s.Handles.Intern(dirHost + "/" + name)
	return wire.ErrOK, writeOpenStyleReply(p, handle, 2, openMode[0])
}

const findReplyLen = 1 + 11 + 4 + 4 + 4 + 2 + 2

func writeFindReply(p props.FileProps, dirID, pos uint16) []byte {
	body := make([]byte, findReplyLen)
	body[0] = p.Attr
	copy(body[1:12], p.FCBName[:])
	wire.PutLE32(body[12:16], p.Time)
	wire.PutLE32(body[16:20], p.Size)
	// bytes 20..23 are reserved/zero
	wire.PutLE16(body[24:26], dirID)
	wire.PutLE16(body[26:28], pos)
	return body
}

func (s *Server) opFindFirst(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	if len(payload) < 1 {
		return wire.ErrNoMoreFiles, nil
	}
	attr := payload[0]
	raw := readCString(payload[1:])
	rel, okSlash := normalizePath(raw)
	if !okSlash {
		return wire.ErrNoMoreFiles, nil
	}
	dirRel, maskTok := splitDirAndMask(rel)
	dirHost, ok := resolver.Resolve(drive.Root, dirRel)
	if !ok {
		return wire.ErrNoMoreFiles, nil
	}

	dirID := s.Handles.Intern(dirHost)
	isRoot := dirHost == drive.Root

	list, err := fsops.GenDirList(dirHost, drive.FAT)
	if err != nil {
		return wire.ErrNoMoreFiles, nil
	}
	s.Handles.SetDirListing(dirID, list)

	mask := fcb.ToFCB(maskTok)
	entry, pos, found := fsops.FindFile(list, mask, attr, isRoot, 0)
	if !found {
		return wire.ErrNoMoreFiles, nil
	}
	return wire.ErrOK, writeFindReply(entry, dirID, pos)
}

func (s *Server) opFindNext(drive *config.DriveEntry, payload []byte) (uint16, []byte) {
	if len(payload) < 16 {
		return wire.ErrNoMoreFiles, nil
	}
	dirID := wire.LE16(payload[0:2])
	pos := wire.LE16(payload[2:4])
	attr := payload[4]
	var mask props.FCBName
	copy(mask[:], payload[5:16])

	list, found := s.Handles.DirListing(dirID)
	if !found {
		return wire.ErrNoMoreFiles, nil
	}
	dirPath, _ := s.Handles.NameOf(dirID)
	isRoot := dirPath == drive.Root

	entry, newPos, ok := fsops.FindFile(list, mask, attr, isRoot, pos)
	if !ok {
		return wire.ErrNoMoreFiles, nil
	}
	return wire.ErrOK, writeFindReply(entry, dirID, newPos)
}

func (s *Server) opSeekFromEnd(payload []byte) (uint16, []byte) {
	if len(payload) < 6 {
		return wire.ErrAccessDenied, nil
	}
	offs := int32(wire.LE32(payload[0:4]))
	handle := wire.LE16(payload[4:6])

	path, ok := s.Handles.NameOf(handle)
	if !ok {
		return wire.ErrAccessDenied, nil
	}
	p, found := fsops.GetAttr(path, false)
	if !found {
		return wire.ErrAccessDenied, nil
	}

	if offs > 0 {
		offs = 0
	}
	result := int64(p.Size) + int64(offs)
	if result < 0 {
		result = 0
	}

	body := make([]byte, 4)
	wire.PutLE32(body, uint32(result))
	return wire.ErrOK, body
}
