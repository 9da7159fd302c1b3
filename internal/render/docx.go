package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"time"
)

const wordNamespace = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

type wDocument struct {
	XMLName xml.Name `xml:"w:document"`
	XmlnsW  string   `xml:"xmlns:w,attr"`
	Body    wBody    `xml:"w:body"`
}

type wBody struct {
	Paragraphs []wParagraph `xml:"w:p"`
}

type wParagraph struct {
	Runs []wRun `xml:"w:r"`
}

type wRun struct {
	Props *wRunProps `xml:"w:rPr,omitempty"`
	Text  wText      `xml:"w:t"`
}

type wRunProps struct {
	Bold *struct{} `xml:"w:b,omitempty"`
	Size *wVal     `xml:"w:sz,omitempty"`
}

type wVal struct {
	Val string `xml:"w:val,attr"`
}

type wText struct {
	Space string `xml:"xml:space,attr,omitempty"`
	Value string `xml:",chardata"`
}

// Half-point font sizes.
const (
	titleSize   = "36"
	headingSize = "28"
)

func paragraphFor(l Line) wParagraph {
	if l.Style == StyleSpacer {
		return wParagraph{}
	}
	run := wRun{Text: wText{Space: "preserve", Value: l.Text}}
	switch l.Style {
	case StyleTitle:
		run.Props = &wRunProps{Bold: &struct{}{}, Size: &wVal{Val: titleSize}}
	case StyleHeading:
		run.Props = &wRunProps{Bold: &struct{}{}, Size: &wVal{Val: headingSize}}
	}
	return wParagraph{Runs: []wRun{run}}
}

func documentXML(doc Document) ([]byte, error) {
	lines := documentLines(doc)
	d := wDocument{XmlnsW: wordNamespace}
	d.Body.Paragraphs = make([]wParagraph, 0, len(lines))
	for _, l := range lines {
		d.Body.Paragraphs = append(d.Body.Paragraphs, paragraphFor(l))
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const contentTypesXML = xml.Header + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>` +
	`</Types>`

const rootRelsXML = xml.Header + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>` +
	`</Relationships>`

const appXML = xml.Header + `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
	`<Application>GenEx</Application></Properties>`

func coreXML(doc Document) ([]byte, error) {
	var title bytes.Buffer
	if err := xml.EscapeText(&title, []byte(doc.Title)); err != nil {
		return nil, err
	}
	ts := doc.GeneratedAt.Format(time.RFC3339)
	return []byte(fmt.Sprintf(xml.Header+
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" `+
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" `+
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">`+
		`<dc:title>%s</dc:title><dc:creator>GenEx</dc:creator>`+
		`<dcterms:created xsi:type="dcterms:W3CDTF">%s</dcterms:created>`+
		`<dcterms:modified xsi:type="dcterms:W3CDTF">%s</dcterms:modified>`+
		`</cp:coreProperties>`, title.String(), ts, ts)), nil
}

// renderDocx writes a minimal WordprocessingML package. Every zip entry is
// stamped with GeneratedAt, so the archive bytes are reproducible.
func renderDocx(doc Document) ([]byte, error) {
	body, err := documentXML(doc)
	if err != nil {
		return nil, err
	}
	core, err := coreXML(doc)
	if err != nil {
		return nil, err
	}

	parts := []struct {
		name string
		data []byte
	}{
		{"[Content_Types].xml", []byte(contentTypesXML)},
		{"_rels/.rels", []byte(rootRelsXML)},
		{"docProps/core.xml", core},
		{"docProps/app.xml", []byte(appXML)},
		{"word/document.xml", body},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: doc.GeneratedAt,
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(p.data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
