package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"

	"ngo-report-api/models"

	"github.com/sirupsen/logrus"
)

type mailSender interface {
	Enabled() bool
	Recipients() []string
	Send(to []string, subject, html string) error
}

var jobSummaryTemplate = template.Must(template.New("job").Parse(`<p>Bulk upload <strong>{{.JobID}}</strong>{{if .FileName}} ({{.FileName}}){{end}} finished with status <strong>{{.Status}}</strong>.</p>
<ul>
<li>Total rows: {{.TotalRows}}</li>
<li>Successful rows: {{.SuccessfulRows}}</li>
<li>Failed rows: {{.FailedRows}}</li>
</ul>
{{with .ErrorMessage}}<pre>{{.}}</pre>{{end}}`))

// MailJobNotifier emails a job summary to the configured recipients.
type MailJobNotifier struct {
	mailer  mailSender
	logger  logrus.FieldLogger
	pending sync.WaitGroup
}

func NewMailJobNotifier(mailer mailSender, logger logrus.FieldLogger) *MailJobNotifier {
	return &MailJobNotifier{mailer: mailer, logger: logger}
}

// JobFinished sends in the background; delivery problems are only logged.
// Call Close before the process exits so queued mails are not dropped.
func (n *MailJobNotifier) JobFinished(_ context.Context, job *models.BulkUploadJob) {
	if n.mailer == nil || !n.mailer.Enabled() || job == nil {
		return
	}
	subject, body, err := renderJobSummary(job)
	if err != nil {
		n.logger.WithField("job_id", job.JobID).WithError(err).Warn("render job notification")
		return
	}
	to := n.mailer.Recipients()
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		if err := n.mailer.Send(to, subject, body); err != nil {
			n.logger.WithField("job_id", job.JobID).WithError(err).Warn("send job notification")
		}
	}()
}

// Close blocks until every notification started by JobFinished has been handed
// to the mail server or has failed.
func (n *MailJobNotifier) Close() {
	n.pending.Wait()
}

func renderJobSummary(job *models.BulkUploadJob) (string, string, error) {
	var buf bytes.Buffer
	if err := jobSummaryTemplate.Execute(&buf, job); err != nil {
		return "", "", err
	}
	subject := fmt.Sprintf("[NGO reports] Bulk upload %s: %s", job.Status, job.JobID)
	return subject, buf.String(), nil
}
