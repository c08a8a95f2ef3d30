package e2e

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/padaiyal/browserfixture/download"
	"github.com/padaiyal/browserfixture/fixture"
	"github.com/padaiyal/browserfixture/fixture/fixturetest"
	"github.com/padaiyal/browserfixture/internal/webdriver"
	"github.com/padaiyal/browserfixture/verify"
)

const maxWaitTimeout = 90 * time.Second

type DownloadTestSuite struct {
	suite.Suite
	Browser     string
	downloadDir string
	session     *webdriver.Session
}

func (suite *DownloadTestSuite) SetupSuite() {
	if !driverConfig.Enabled() {
		suite.T().Skip("no webdriver configured")
	}
	if driverConfig.Browser != suite.Browser {
		suite.T().Skipf("webdriver is configured for %s", driverConfig.Browser)
	}
}

func (suite *DownloadTestSuite) SetupTest() {
	var err error
	suite.downloadDir = suite.T().TempDir()
	suite.session, err = webdriver.Start(driverConfig, suite.downloadDir, logger)
	suite.Require().NoError(err)
}

func (suite *DownloadTestSuite) TearDownTest() {
	if suite.session == nil {
		return
	}
	if err := suite.session.Close(); err != nil {
		suite.T().Logf("Error closing browser session: %s", err)
	}
	suite.session = nil
}

// download opens page, clicks the download link and waits for fileName to
// settle in the download directory.
func (suite *DownloadTestSuite) download(pageURL, fileName string) []byte {
	suite.Require().NoError(suite.session.Driver.Get(pageURL))
	suite.Require().NoError(suite.session.Click(fixture.DownloadLinkID))

	spec := download.NewWaitSpec(filepath.Join(suite.downloadDir, fileName)).WithBrowserMarkers()
	spec.Timeout = maxWaitTimeout
	waiter := download.NewWaiter(download.WithLogger(logger))
	obs, err := waiter.Await(context.Background(), spec)
	suite.Require().NoError(err)
	suite.Positive(obs.Size)

	data, err := os.ReadFile(spec.TargetPath)
	suite.Require().NoError(err)
	return data
}

func (suite *DownloadTestSuite) TestDataURLDownload() {
	expected := []byte("Hello, World!")
	page, err := fixture.DownloadPage("hello.txt", expected, "text/plain")
	suite.Require().NoError(err)
	srv := fixturetest.Start(suite.T(), fixture.Config{
		Resources: map[string]fixture.Resource{"/": page},
	}, fixture.WithLogger(logger))

	actual := suite.download(srv.URL("/"), "hello.txt")
	suite.NoError(verify.Bytes(expected, actual))
}

func (suite *DownloadTestSuite) TestSlowAttachmentDownload() {
	expected := []byte(strings.Repeat("id,name,amount\n1,widget,10\n", 4096))
	page, err := fixture.DownloadLinkPage("report.csv", "/report.csv")
	suite.Require().NoError(err)
	srv := fixturetest.Start(suite.T(), fixture.Config{
		Resources: map[string]fixture.Resource{"/": page},
		Handlers: map[string]http.Handler{
			"/report.csv": fixture.Trickle(expected, "report.csv", 8, 200*time.Millisecond),
		},
	}, fixture.WithLogger(logger))

	actual := suite.download(srv.URL("/"), "report.csv")
	suite.NoError(verify.Bytes(expected, actual))
}
