package steps

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/sitepublish/internal/foundation/errors"
	"git.home.luguber.info/inful/sitepublish/internal/site"
)

const atomNS = "http://www.w3.org/2005/Atom"

type cdata struct {
	Text string `xml:",cdata"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type guid struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// absoluteURL resolves a site relative path against the site URL. Directory
// style paths get a trailing slash; absolute URLs are returned unchanged.
func absoluteURL(s site.Site, rel string, dir bool) (string, error) {
	if strings.HasPrefix(rel, "http://") || strings.HasPrefix(rel, "https://") {
		return rel, nil
	}
	base, err := url.Parse(s.URL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", ferrors.ValidationError("site url must be absolute").
			WithContext("url", s.URL).
			Build()
	}
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return strings.TrimSuffix(base.String(), "/") + "/", nil
	}
	u := base.JoinPath(strings.Split(rel, "/")...).String()
	if dir {
		u += "/"
	}
	return u, nil
}

func rfc1123(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC1123Z)
}

// itemDate is the publication date of an item, falling back to its last
// modification.
func itemDate(it site.Item) time.Time {
	if !it.Content.Date.IsZero() {
		return it.Content.Date
	}
	return it.Content.LastModified
}

func encodeXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFeed, "failed to encode xml").Build()
	}
	if err := enc.Close(); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFeed, "failed to encode xml").Build()
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
