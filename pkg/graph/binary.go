package graph

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	magicBytes = "GEOGRAPH"
	maxNodes   = 50_000_000
	maxEdges   = 200_000_000
	maxShape   = 1_000_000_000
	maxBlob    = 1 << 31
)

const flagNonGeometric = 1 << 0

// fileHeader is the binary header.
type fileHeader struct {
	Magic       [8]byte
	Flags       uint32
	NumNodes    uint32
	NumEdges    uint32
	NumSegments uint32
	NumShape    uint32 // total geometry points across segments
	IDBytes     uint32 // concatenated node identity length
}

// Save writes a flat dump of the graph: node table, adjacency list, attribute
// tables and the geometry flag, followed by a CRC32 of everything before it.
// Uses unsafe.Slice for fast zero-copy I/O.
func (g *Graph) Save(out io.Writer) error {
	crcWriter := crc32Writer{w: out, hash: crc32.NewIEEE()}
	w := &crcWriter

	n := len(g.nodes)

	idLens := make([]uint32, n)
	var idBytes int
	for i, id := range g.nodes {
		idLens[i] = uint32(len(id))
		idBytes += len(id)
	}
	var numShape int
	for _, ls := range g.geometry {
		numShape += len(ls)
	}

	hdr := fileHeader{
		NumNodes:    uint32(n),
		NumEdges:    uint32(g.numEdges),
		NumSegments: uint32(len(g.geometry)),
		NumShape:    uint32(numShape),
		IDBytes:     uint32(idBytes),
	}
	if g.nonGeometric {
		hdr.Flags |= flagNonGeometric
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	// Node table.
	if err := writeUint32Slice(w, idLens); err != nil {
		return fmt.Errorf("write node id lengths: %w", err)
	}
	for _, id := range g.nodes {
		if _, err := io.WriteString(w, id); err != nil {
			return fmt.Errorf("write node ids: %w", err)
		}
	}
	lon := make([]float64, n)
	lat := make([]float64, n)
	located := make([]byte, n)
	for i, p := range g.coords {
		lon[i], lat[i] = p[0], p[1]
		if g.located[i] {
			located[i] = 1
		}
	}
	if err := writeFloat64Slice(w, lon); err != nil {
		return fmt.Errorf("write node lon: %w", err)
	}
	if err := writeFloat64Slice(w, lat); err != nil {
		return fmt.Errorf("write node lat: %w", err)
	}
	if _, err := w.Write(located); err != nil {
		return fmt.Errorf("write node located: %w", err)
	}

	// Adjacency in CSR order.
	firstOut := make([]uint32, n+1)
	head := make([]uint32, 0, g.numEdges)
	cost := make([]float64, 0, g.numEdges)
	attr := make([]uint32, 0, g.numEdges)
	reverse := make([]byte, 0, g.numEdges)
	for u, edges := range g.adjacency {
		for _, e := range edges {
			head = append(head, e.To)
			cost = append(cost, e.Cost)
			attr = append(attr, e.Attr)
			var r byte
			if e.Reverse {
				r = 1
			}
			reverse = append(reverse, r)
		}
		firstOut[u+1] = uint32(len(head))
	}
	if err := writeUint32Slice(w, firstOut); err != nil {
		return fmt.Errorf("write FirstOut: %w", err)
	}
	if err := writeUint32Slice(w, head); err != nil {
		return fmt.Errorf("write Head: %w", err)
	}
	if err := writeFloat64Slice(w, cost); err != nil {
		return fmt.Errorf("write Cost: %w", err)
	}
	if err := writeUint32Slice(w, attr); err != nil {
		return fmt.Errorf("write Attr: %w", err)
	}
	if _, err := w.Write(reverse); err != nil {
		return fmt.Errorf("write Reverse: %w", err)
	}

	// Segment geometry.
	geoFirstOut := make([]uint32, len(g.geometry)+1)
	shapeLon := make([]float64, 0, numShape)
	shapeLat := make([]float64, 0, numShape)
	for i, ls := range g.geometry {
		for _, p := range ls {
			shapeLon = append(shapeLon, p[0])
			shapeLat = append(shapeLat, p[1])
		}
		geoFirstOut[i+1] = uint32(len(shapeLon))
	}
	if err := writeUint32Slice(w, geoFirstOut); err != nil {
		return fmt.Errorf("write GeoFirstOut: %w", err)
	}
	if err := writeFloat64Slice(w, shapeLon); err != nil {
		return fmt.Errorf("write GeoShapeLon: %w", err)
	}
	if err := writeFloat64Slice(w, shapeLat); err != nil {
		return fmt.Errorf("write GeoShapeLat: %w", err)
	}

	// Segment properties as one JSON array.
	blob, err := json.Marshal(g.properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	if err := writeLenPrefixedBytes(w, blob); err != nil {
		return fmt.Errorf("write properties: %w", err)
	}

	// Write CRC32 trailer.
	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(out, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	return nil
}

// Load reads a graph written by Save.
func Load(in io.Reader) (*Graph, error) {
	crcReader := crc32Reader{r: in, hash: crc32.NewIEEE()}
	r := &crcReader

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.NumNodes > maxNodes {
		return nil, fmt.Errorf("NumNodes %d exceeds limit %d", hdr.NumNodes, maxNodes)
	}
	if hdr.NumEdges > maxEdges || hdr.NumSegments > maxEdges {
		return nil, fmt.Errorf("edge count exceeds limit %d", maxEdges)
	}
	if hdr.NumShape > maxShape || hdr.IDBytes > maxBlob {
		return nil, fmt.Errorf("geometry or id table exceeds limit")
	}

	n := int(hdr.NumNodes)
	numEdges := int(hdr.NumEdges)
	numSegs := int(hdr.NumSegments)

	// Node table.
	idLens, err := readUint32Slice(r, n)
	if err != nil {
		return nil, fmt.Errorf("read node id lengths: %w", err)
	}
	idBuf := make([]byte, hdr.IDBytes)
	if _, err := io.ReadFull(r, idBuf); err != nil {
		return nil, fmt.Errorf("read node ids: %w", err)
	}
	lon, err := readFloat64Slice(r, n)
	if err != nil {
		return nil, fmt.Errorf("read node lon: %w", err)
	}
	lat, err := readFloat64Slice(r, n)
	if err != nil {
		return nil, fmt.Errorf("read node lat: %w", err)
	}
	located, err := readBytes(r, n)
	if err != nil {
		return nil, fmt.Errorf("read node located: %w", err)
	}

	// Adjacency.
	firstOut, err := readUint32Slice(r, n+1)
	if err != nil {
		return nil, fmt.Errorf("read FirstOut: %w", err)
	}
	head, err := readUint32Slice(r, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read Head: %w", err)
	}
	cost, err := readFloat64Slice(r, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read Cost: %w", err)
	}
	attr, err := readUint32Slice(r, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read Attr: %w", err)
	}
	reverse, err := readBytes(r, numEdges)
	if err != nil {
		return nil, fmt.Errorf("read Reverse: %w", err)
	}

	// Geometry.
	geoFirstOut, err := readUint32Slice(r, numSegs+1)
	if err != nil {
		return nil, fmt.Errorf("read GeoFirstOut: %w", err)
	}
	shapeLon, err := readFloat64Slice(r, int(hdr.NumShape))
	if err != nil {
		return nil, fmt.Errorf("read GeoShapeLon: %w", err)
	}
	shapeLat, err := readFloat64Slice(r, int(hdr.NumShape))
	if err != nil {
		return nil, fmt.Errorf("read GeoShapeLat: %w", err)
	}

	blob, err := readLenPrefixedBytes(r)
	if err != nil {
		return nil, fmt.Errorf("read properties: %w", err)
	}

	// Read and validate CRC32.
	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(in, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	if err := validateCSR(firstOut, head, hdr.NumNodes); err != nil {
		return nil, fmt.Errorf("adjacency invalid: %w", err)
	}
	if err := validateCSR(geoFirstOut, nil, hdr.NumSegments); err != nil {
		return nil, fmt.Errorf("geometry index invalid: %w", err)
	}
	if geoFirstOut[numSegs] != hdr.NumShape {
		return nil, fmt.Errorf("geometry index ends at %d, want %d", geoFirstOut[numSegs], hdr.NumShape)
	}
	for i, a := range attr {
		if a >= hdr.NumSegments {
			return nil, fmt.Errorf("Attr[%d]=%d >= NumSegments=%d", i, a, hdr.NumSegments)
		}
	}

	var props []geojson.Properties
	if err := json.Unmarshal(blob, &props); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	if len(props) != numSegs {
		return nil, fmt.Errorf("properties length %d != NumSegments %d", len(props), numSegs)
	}

	g := &Graph{
		nodes:        make([]string, n),
		index:        make(map[string]uint32, n),
		coords:       make([]orb.Point, n),
		located:      make([]bool, n),
		adjacency:    make([][]Edge, n),
		numEdges:     numEdges,
		geometry:     make([]orb.LineString, numSegs),
		properties:   props,
		nonGeometric: hdr.Flags&flagNonGeometric != 0,
	}

	var off uint32
	for i, l := range idLens {
		if off+l > hdr.IDBytes {
			return nil, fmt.Errorf("node id %d overruns id table", i)
		}
		id := string(idBuf[off : off+l])
		off += l
		g.nodes[i] = id
		g.index[id] = uint32(i)
		g.coords[i] = orb.Point{lon[i], lat[i]}
		g.located[i] = located[i] != 0
	}

	for s := range numSegs {
		start, end := geoFirstOut[s], geoFirstOut[s+1]
		if end > start {
			ls := make(orb.LineString, end-start)
			for j := range ls {
				k := int(start) + j
				ls[j] = orb.Point{shapeLon[k], shapeLat[k]}
			}
			g.geometry[s] = ls
		}
	}

	for u := range n {
		start, end := firstOut[u], firstOut[u+1]
		if start == end {
			continue
		}
		edges := make([]Edge, 0, end-start)
		for e := start; e < end; e++ {
			v := head[e]
			edges = append(edges, Edge{
				From:      uint32(u),
				To:        v,
				Cost:      cost[e],
				FromCoord: g.coords[u],
				ToCoord:   g.coords[v],
				Attr:      attr[e],
				Reverse:   reverse[e] != 0,
			})
		}
		g.adjacency[u] = edges
	}

	return g, nil
}

// WriteFile saves g to path through a temp file and an atomic rename.
func WriteFile(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	bw := bufio.NewWriterSize(f, 1<<20)
	if err := g.Save(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Atomic rename.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadFile loads a graph saved with WriteFile.
func ReadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return Load(bufio.NewReaderSize(f, 1<<20))
}

// validateCSR checks CSR invariants. A nil head skips the target check.
func validateCSR(firstOut, head []uint32, numNodes uint32) error {
	if uint32(len(firstOut)) != numNodes+1 {
		return fmt.Errorf("FirstOut length %d != NumNodes+1 %d", len(firstOut), numNodes+1)
	}
	if firstOut[0] != 0 {
		return fmt.Errorf("FirstOut[0]=%d, want 0", firstOut[0])
	}
	for i := uint32(1); i <= numNodes; i++ {
		if firstOut[i] < firstOut[i-1] {
			return fmt.Errorf("FirstOut not monotonic at %d: %d < %d", i, firstOut[i], firstOut[i-1])
		}
	}
	if head == nil {
		return nil
	}
	numEdges := firstOut[numNodes]
	if uint32(len(head)) != numEdges {
		return fmt.Errorf("Head length %d != FirstOut[NumNodes] %d", len(head), numEdges)
	}
	for i, h := range head {
		if h >= numNodes {
			return fmt.Errorf("Head[%d]=%d >= NumNodes=%d", i, h, numNodes)
		}
	}
	return nil
}

// Zero-copy I/O helpers using unsafe.Slice.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readBytes(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeLenPrefixedBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readLenPrefixedBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxBlob {
		return nil, fmt.Errorf("length %d exceeds limit %d", n, maxBlob)
	}
	return readBytes(r, int(n))
}

// CRC32 wrapping writers/readers.

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
