package mirror

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	publishedReportTemplateConstant     = "PUBLISHED: %s -> %s\n"
	plannedReportTemplateConstant       = "PLANNED: %s -> %s\n"
	skippedReportTemplateConstant       = "SKIPPED: %s already published\n"
	failedReportTemplateConstant        = "FAILED: %s (%s): %s\n"
	orphanedReportTemplateConstant      = "ORPHANED RELEASE: %s has no asset attached; upload it manually: %s\n"
	orphanedAssetReportTemplateConstant = "  asset %s from %s\n"
	summaryReportTemplateConstant       = "SUMMARY: discovered %d, skipped %d, published %d, planned %d, failed %d\n"
	yamlIndentConstant                  = 2
	yamlSummaryEncodingErrorTemplate    = "unable to encode summary: %w"
)

// Reporter emits formatted run events to an underlying sink.
type Reporter interface {
	Printf(format string, args ...any)
}

type writerReporter struct {
	writer io.Writer
}

// NewWriterReporter constructs a Reporter that writes to the provided io.Writer.
func NewWriterReporter(writer io.Writer) Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return writerReporter{writer: writer}
}

func (reporter writerReporter) Printf(format string, args ...any) {
	fmt.Fprintf(reporter.writer, format, args...)
}

// ReportSummary prints one line per skipped and processed version followed by the totals.
func ReportSummary(reporter Reporter, summary Summary) {
	if reporter == nil {
		return
	}

	for _, version := range summary.Skipped {
		reporter.Printf(skippedReportTemplateConstant, version)
	}

	for _, outcome := range summary.Outcomes {
		switch outcome.Status {
		case OutcomeStatusPublished:
			reporter.Printf(publishedReportTemplateConstant, outcome.Version, outcome.ReleaseTag)
		case OutcomeStatusPlanned:
			reporter.Printf(plannedReportTemplateConstant, outcome.Version, outcome.ReleaseTag)
		case OutcomeStatusUploadFailed:
			reporter.Printf(orphanedReportTemplateConstant, outcome.ReleaseTag, outcome.ReleaseURL)
			reporter.Printf(orphanedAssetReportTemplateConstant, outcome.AssetName, outcome.LocalPath)
		default:
			reporter.Printf(failedReportTemplateConstant, outcome.Version, outcome.Status, outcome.ErrorMessage)
		}
	}

	reporter.Printf(summaryReportTemplateConstant,
		summary.Discovered,
		len(summary.Skipped),
		summary.CountStatus(OutcomeStatusPublished),
		summary.CountStatus(OutcomeStatusPlanned),
		len(summary.Failures()),
	)
}

// WriteSummary renders the summary in the requested format.
func WriteSummary(writer io.Writer, summary Summary, format ReportFormat) error {
	switch format {
	case ReportFormatText, "":
		ReportSummary(NewWriterReporter(writer), summary)
		return nil
	case ReportFormatYAML:
		encoder := yaml.NewEncoder(writer)
		encoder.SetIndent(yamlIndentConstant)
		if encodeError := encoder.Encode(summary); encodeError != nil {
			return fmt.Errorf(yamlSummaryEncodingErrorTemplate, encodeError)
		}
		if closeError := encoder.Close(); closeError != nil {
			return fmt.Errorf(yamlSummaryEncodingErrorTemplate, closeError)
		}
		return nil
	default:
		return fmt.Errorf(unsupportedReportFormatTemplate, format)
	}
}
