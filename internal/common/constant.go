package common

// CronSecretQueryParam is the query parameter carrying the shared secret on
// scheduled trigger calls when the Authorization header is not used.
const CronSecretQueryParam = "secret"

// MonthLayout formats the calendar month key used by usage counters.
const MonthLayout = "2006-01"
