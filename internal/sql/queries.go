package sql

import (
	"embed"
)

// Migrations holds the schema DDL, applied in filename order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/register_fee_file.sql
var RegisterFeeFile string

//go:embed queries/lookup_fee_file.sql
var LookupFeeFile string

//go:embed queries/update_fee_file_status.sql
var UpdateFeeFileStatus string

//go:embed queries/delete_fee_file_rows.sql
var DeleteFeeFileRows string

//go:embed queries/deactivate_older_fee_files.sql
var DeactivateOlderFeeFiles string

//go:embed queries/activate_fee_file.sql
var ActivateFeeFile string

//go:embed queries/purge_inactive_fee_rows.sql
var PurgeInactiveFeeRows string

//go:embed queries/analyze_fee_schedule.sql
var AnalyzeFeeSchedule string

//go:embed queries/fee_aggregate.sql
var FeeAggregate string
