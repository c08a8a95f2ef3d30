package fixture

import (
	"bytes"
	"encoding/base64"
	"html/template"
)

// DownloadLinkID is the id of the anchor on download pages.
const DownloadLinkID = "downloadLink"

var downloadPage = template.Must(template.New("download").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Download Test</title>
</head>
<body>
  <a id="{{.ID}}" href="{{.Href}}" download="{{.FileName}}">Download File</a>
</body>
</html>
`))

// DownloadPage returns a page whose link downloads data inline through a
// data: URL, saved by the browser as fileName.
func DownloadPage(fileName string, data []byte, contentType string) (Resource, error) {
	if contentType == "" {
		contentType = defaultContentType
	}
	href := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	return renderDownloadPage(fileName, template.URL(href))
}

// DownloadLinkPage returns a page whose link downloads href, typically a
// route on the same server whose Resource has Attachment set.
func DownloadLinkPage(fileName, href string) (Resource, error) {
	return renderDownloadPage(fileName, template.URL(href))
}

func renderDownloadPage(fileName string, href template.URL) (Resource, error) {
	var buf bytes.Buffer
	err := downloadPage.Execute(&buf, struct {
		ID       string
		Href     template.URL
		FileName string
	}{DownloadLinkID, href, fileName})
	if err != nil {
		return Resource{}, err
	}
	return HTML(buf.String()), nil
}
