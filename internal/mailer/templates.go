package mailer

// Template names. Each one has a subject and an HTML body.
const (
	TemplateSessionBooked    = "session_booked"
	TemplateSessionConfirmed = "session_confirmed"
	TemplateSessionDeclined  = "session_declined"
	TemplateSessionCancelled = "session_cancelled"
	TemplateSessionCompleted = "session_completed"
	TemplateOrderCompleted   = "order_completed"
	TemplateTicketReplied    = "ticket_replied"
)

type template struct {
	subject string
	body    string
}

const layoutOpen = `<div style="font-family:Georgia,serif;max-width:560px;margin:auto;color:#2b2340">`
const layoutClose = `<p style="color:#8a83a0;font-size:12px">You can turn off these emails in your notification preferences.</p></div>`

var builtin = map[string]template{
	TemplateSessionBooked: {
		subject: "New {{ session.type }} session request",
		body: layoutOpen + `
<p>Hi {{ recipient.name | default: "there" }},</p>
<p>{{ client_name }} requested a {{ session.duration_minutes }} minute {{ session.type }} reading
on {{ session.starts_at | datetime }}.</p>
<p>Please confirm or decline it from your dashboard.</p>` + layoutClose,
	},
	TemplateSessionConfirmed: {
		subject: "Your reading with {{ reader_name }} is confirmed",
		body: layoutOpen + `
<p>Hi {{ recipient.name | default: "there" }},</p>
<p>{{ reader_name }} confirmed your {{ session.type }} reading on {{ session.starts_at | datetime }}.</p>
<p>Price: {{ session.price_cents | money }}</p>` + layoutClose,
	},
	TemplateSessionDeclined: {
		subject: "Your session request was declined",
		body: layoutOpen + `
<p>Hi {{ recipient.name | default: "there" }},</p>
<p>{{ reader_name }} could not take your reading on {{ session.starts_at | datetime }}.
{{ session.price_cents | money }} has been returned to your wallet.</p>` + layoutClose,
	},
	TemplateSessionCancelled: {
		subject: "Session on {{ session.starts_at | datetime }} cancelled",
		body: layoutOpen + `
<p>Hi {{ recipient.name | default: "there" }},</p>
<p>The {{ session.type }} reading on {{ session.starts_at | datetime }} was cancelled.</p>
{% if session.reason != "" %}<p>Reason: {{ session.reason }}</p>{% endif %}` + layoutClose,
	},
	TemplateSessionCompleted: {
		subject: "How was your reading?",
		body: layoutOpen + `
<p>Hi {{ recipient.name | default: "there" }},</p>
<p>Your session with {{ reader_name }} is complete. Leave a review to help other seekers.</p>` + layoutClose,
	},
	TemplateOrderCompleted: {
		subject: "Your order receipt ({{ order.total_cents | money }})",
		body: layoutOpen + `
<p>Hi {{ recipient.name | default: "there" }},</p>
<p>Thank you for your purchase:</p>
<ul>{% for title in order.titles %}<li>{{ title }}</li>{% endfor %}</ul>
<p>Total charged: {{ order.total_cents | money }}</p>` + layoutClose,
	},
	TemplateTicketReplied: {
		subject: "Re: {{ ticket.subject }}",
		body: layoutOpen + `
<p>Hi {{ recipient.name | default: "there" }},</p>
<p>Support replied to your ticket:</p>
<blockquote>{{ ticket.body }}</blockquote>` + layoutClose,
	},
}
