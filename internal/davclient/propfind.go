package davclient

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// XML namespaces used in ownCloud multistatus documents.
const (
	NamespaceDAV = "DAV:"
	NamespaceOC  = "http://owncloud.org/ns"
)

// Depth values for PROPFIND.
const (
	DepthZero = "0"
	DepthOne  = "1"
)

// FileProps is the property set requested for RemoteFile metadata.
var FileProps = []xml.Name{
	{Space: NamespaceDAV, Local: "resourcetype"},
	{Space: NamespaceDAV, Local: "getcontentlength"},
	{Space: NamespaceDAV, Local: "getcontenttype"},
	{Space: NamespaceDAV, Local: "getlastmodified"},
	{Space: NamespaceDAV, Local: "creationdate"},
	{Space: NamespaceDAV, Local: "getetag"},
	{Space: NamespaceOC, Local: "permissions"},
	{Space: NamespaceOC, Local: "id"},
	{Space: NamespaceOC, Local: "size"},
	{Space: NamespaceOC, Local: "privatelink"},
	{Space: NamespaceOC, Local: "owner-id"},
	{Space: NamespaceOC, Local: "share-types"},
}

// ProbeProps is the minimal set for existence checks.
var ProbeProps = []xml.Name{
	{Space: NamespaceDAV, Local: "resourcetype"},
}

// MetaProps asks the meta endpoint for the user-visible path of a file id.
var MetaProps = []xml.Name{
	{Space: NamespaceOC, Local: "meta-path-for-user"},
}

// PropfindBody renders a PROPFIND request body for the given properties.
func PropfindBody(props []xml.Name) []byte {
	var b bytes.Buffer

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<d:propfind xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns"><d:prop>`)

	for _, p := range props {
		prefix := "d"
		if p.Space == NamespaceOC {
			prefix = "oc"
		}

		fmt.Fprintf(&b, "<%s:%s/>", prefix, p.Local)
	}

	b.WriteString(`</d:prop></d:propfind>`)

	return b.Bytes()
}

// Multistatus is a decoded 207 response body.
type Multistatus struct {
	XMLName   xml.Name       `xml:"DAV: multistatus"`
	Responses []PropResponse `xml:"DAV: response"`
}

// PropResponse is one resource entry in a multistatus document.
type PropResponse struct {
	Href      string     `xml:"DAV: href"`
	Propstats []Propstat `xml:"DAV: propstat"`
	Status    string     `xml:"DAV: status"`
}

// Propstat groups properties that share a status.
type Propstat struct {
	Prop   Prop   `xml:"DAV: prop"`
	Status string `xml:"DAV: status"`
}

// Prop holds the raw property values ocdav understands.
type Prop struct {
	ResourceType    ResourceType `xml:"DAV: resourcetype"`
	ContentLength   string       `xml:"DAV: getcontentlength"`
	ContentType     string       `xml:"DAV: getcontenttype"`
	LastModified    string       `xml:"DAV: getlastmodified"`
	CreationDate    string       `xml:"DAV: creationdate"`
	ETag            string       `xml:"DAV: getetag"`
	Permissions     string       `xml:"http://owncloud.org/ns permissions"`
	ID              string       `xml:"http://owncloud.org/ns id"`
	Size            string       `xml:"http://owncloud.org/ns size"`
	PrivateLink     string       `xml:"http://owncloud.org/ns privatelink"`
	OwnerID         string       `xml:"http://owncloud.org/ns owner-id"`
	ShareTypes      ShareTypes   `xml:"http://owncloud.org/ns share-types"`
	MetaPathForUser string       `xml:"http://owncloud.org/ns meta-path-for-user"`
}

// ResourceType reports whether the resource is a collection.
type ResourceType struct {
	Collection *struct{} `xml:"DAV: collection"`
}

// ShareTypes lists the share kinds attached to a resource.
type ShareTypes struct {
	Types []int `xml:"http://owncloud.org/ns share-type"`
}

// ParseMultistatus decodes a multistatus document.
func ParseMultistatus(r io.Reader) (*Multistatus, error) {
	var ms Multistatus
	if err := xml.NewDecoder(r).Decode(&ms); err != nil {
		return nil, fmt.Errorf("davclient: decoding multistatus: %w", err)
	}

	return &ms, nil
}

// AcceptedProps merges the properties of every propstat whose status is 200
// or 425. ownCloud reports files still in post-processing as 425 Too Early;
// their properties are valid. The bool is false when no propstat qualified.
func (r *PropResponse) AcceptedProps() (Prop, bool) {
	var merged Prop

	found := false

	for i := range r.Propstats {
		code := ParseStatusLine(r.Propstats[i].Status)
		if code != 200 && code != 425 { //nolint:mnd // HTTP status codes
			continue
		}

		found = true

		mergeProp(&merged, &r.Propstats[i].Prop)
	}

	return merged, found
}

func mergeProp(dst, src *Prop) {
	if src.ResourceType.Collection != nil {
		dst.ResourceType.Collection = src.ResourceType.Collection
	}

	for _, f := range []struct{ d, s *string }{
		{&dst.ContentLength, &src.ContentLength},
		{&dst.ContentType, &src.ContentType},
		{&dst.LastModified, &src.LastModified},
		{&dst.CreationDate, &src.CreationDate},
		{&dst.ETag, &src.ETag},
		{&dst.Permissions, &src.Permissions},
		{&dst.ID, &src.ID},
		{&dst.Size, &src.Size},
		{&dst.PrivateLink, &src.PrivateLink},
		{&dst.OwnerID, &src.OwnerID},
		{&dst.MetaPathForUser, &src.MetaPathForUser},
	} {
		if *f.d == "" {
			*f.d = strings.TrimSpace(*f.s)
		}
	}

	dst.ShareTypes.Types = append(dst.ShareTypes.Types, src.ShareTypes.Types...)
}

// ParseStatusLine extracts the code from "HTTP/1.1 200 OK". Returns 0 when
// the line is malformed.
func ParseStatusLine(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 { //nolint:mnd // protocol + code
		return 0
	}

	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}

	return code
}
