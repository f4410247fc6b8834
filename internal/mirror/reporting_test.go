package mirror_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/popper/internal/mirror"
)

func sampleSummary() mirror.Summary {
	return mirror.Summary{
		RunID:      "run-1",
		Repository: "Katrovsky/ShopperPopper",
		Discovered: 4,
		Skipped:    []string{"3.5.1"},
		Outcomes: []mirror.VersionOutcome{
			{Version: "3.5.2", Status: mirror.OutcomeStatusPublished, ReleaseTag: "v3.5.2", LocalPath: "Shopper_3.5.2.apk"},
			{Version: "3.5.3", Status: mirror.OutcomeStatusDownloadFailed, ReleaseTag: "v3.5.3", ErrorMessage: "size mismatch", Error: errors.New("size mismatch")},
			{
				Version:      "3.5.4",
				Status:       mirror.OutcomeStatusUploadFailed,
				ReleaseTag:   "v3.5.4",
				ReleaseURL:   "https://github.com/Katrovsky/ShopperPopper/releases/tag/v3.5.4",
				AssetName:    "Shopper_3.5.4.apk",
				LocalPath:    "downloads/Shopper_3.5.4.apk",
				ErrorMessage: "connection reset",
				Error:        errors.New("connection reset"),
			},
		},
	}
}

func TestReportSummaryText(testInstance *testing.T) {
	output := &bytes.Buffer{}
	require.NoError(testInstance, mirror.WriteSummary(output, sampleSummary(), mirror.ReportFormatText))

	expected := "SKIPPED: 3.5.1 already published\n" +
		"PUBLISHED: 3.5.2 -> v3.5.2\n" +
		"FAILED: 3.5.3 (download_failed): size mismatch\n" +
		"ORPHANED RELEASE: v3.5.4 has no asset attached; upload it manually: https://github.com/Katrovsky/ShopperPopper/releases/tag/v3.5.4\n" +
		"  asset Shopper_3.5.4.apk from downloads/Shopper_3.5.4.apk\n" +
		"SUMMARY: discovered 4, skipped 1, published 1, planned 0, failed 2\n"
	require.Equal(testInstance, expected, output.String())
}

func TestReportSummaryYAML(testInstance *testing.T) {
	output := &bytes.Buffer{}
	require.NoError(testInstance, mirror.WriteSummary(output, sampleSummary(), mirror.ReportFormatYAML))

	var decoded struct {
		RunID      string   `yaml:"run_id"`
		Repository string   `yaml:"repository"`
		Discovered int      `yaml:"discovered"`
		Skipped    []string `yaml:"skipped"`
		Outcomes   []struct {
			Version    string `yaml:"version"`
			Status     string `yaml:"status"`
			ReleaseURL string `yaml:"release_url"`
			Error      string `yaml:"error"`
		} `yaml:"outcomes"`
	}
	require.NoError(testInstance, yaml.Unmarshal(output.Bytes(), &decoded))
	require.Equal(testInstance, "run-1", decoded.RunID)
	require.Equal(testInstance, 4, decoded.Discovered)
	require.Equal(testInstance, []string{"3.5.1"}, decoded.Skipped)
	require.Len(testInstance, decoded.Outcomes, 3)
	require.Equal(testInstance, "published", decoded.Outcomes[0].Status)
	require.Empty(testInstance, decoded.Outcomes[0].Error)
	require.Equal(testInstance, "size mismatch", decoded.Outcomes[1].Error)
	require.Equal(testInstance, "upload_failed", decoded.Outcomes[2].Status)
	require.Contains(testInstance, decoded.Outcomes[2].ReleaseURL, "v3.5.4")
}

func TestWriteSummaryRejectsUnknownFormat(testInstance *testing.T) {
	require.Error(testInstance, mirror.WriteSummary(&bytes.Buffer{}, sampleSummary(), mirror.ReportFormat("xml")))
}

func TestReportSummaryDryRun(testInstance *testing.T) {
	output := &bytes.Buffer{}
	mirror.ReportSummary(mirror.NewWriterReporter(output), mirror.Summary{
		Discovered: 1,
		DryRun:     true,
		Outcomes:   []mirror.VersionOutcome{{Version: "3.5.2", Status: mirror.OutcomeStatusPlanned, ReleaseTag: "v3.5.2"}},
	})
	require.Equal(testInstance, "PLANNED: 3.5.2 -> v3.5.2\nSUMMARY: discovered 1, skipped 0, published 0, planned 1, failed 0\n", output.String())
}
