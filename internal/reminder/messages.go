package reminder

// Тексты напоминаний. Плейсхолдеры подставляются пакетом render.
const (
	appointmentSubject            = "Reminder: Your appointment is {when}"
	appointmentParticipantSubject = "Reminder: Appointment {when} - {title}"

	appointmentEmail = `<p>Hi {first_name},</p>
<p>This is a friendly reminder that your appointment <strong>{title}</strong> is {when}.</p>
<p><strong>Date:</strong> {date}<br><strong>Time:</strong> {time}<br><strong>Location:</strong> {location}</p>
<p>If you need to reschedule, please contact us.</p>
<p>{business_name}</p>`

	appointmentSMS = `Reminder: Your appointment "{title}" is {when} at {time}. Location: {location}. Reply STOP to opt out.`

	leadFollowUpSubject = "Follow-up needed: {lead_name} waiting {days} days"

	leadFollowUpEmail = `<p>Hi {owner_name},</p>
<p>The lead <strong>{lead_name}</strong> has been waiting for {days} days without a response.</p>
<p><strong>Email:</strong> {lead_email}<br><strong>Phone:</strong> {lead_phone}<br><strong>Project:</strong> {project_type}</p>
<p>Reach out soon to keep the lead warm.</p>`

	leadFollowUpTitle = "Lead needs follow-up"
	leadFollowUpBody  = "{lead_name} has been waiting {days} days for a response."

	// NotificationKindLeadFollowUp — тип in-app уведомления о лиде.
	NotificationKindLeadFollowUp = "lead_follow_up"

	paymentSubject = "Payment Reminder: Invoice #{invoice_number} is overdue"

	paymentEmail = `<p>Hi {name},</p>
<p>This is a reminder that invoice <strong>#{invoice_number}</strong> for <strong>{amount}</strong> is {days_overdue} days overdue.</p>
<p>Please arrange payment at your earliest convenience.</p>
<p>{business_name}</p>`

	paymentSMS = "Reminder: invoice #{invoice_number} for {amount} is {days_overdue} days overdue. - {business_name}"
)
