// Package entity lists every table of the MES schema for auto-migration.
package entity

import (
	"gorm.io/gorm"

	catalogEntity "mes.GO/model/entity/catalog"
	erpEntity "mes.GO/model/entity/erp"
	reportEntity "mes.GO/model/entity/report"
	reportingEntity "mes.GO/model/entity/reporting"
	systemEntity "mes.GO/model/entity/system"
	workorderEntity "mes.GO/model/entity/workorder"
)

// All returns one zero value per table.
func All() []interface{} {
	return []interface{}{
		&catalogEntity.Process{},
		&catalogEntity.Equipment{},
		&catalogEntity.ProcessEquipment{},
		&catalogEntity.Operator{},
		&catalogEntity.OperatorSkill{},
		&catalogEntity.ProductRoute{},
		&catalogEntity.StandardCapacity{},
		&erpEntity.CompanyConfig{},
		&erpEntity.StagedMO{},
		&workorderEntity.WorkOrder{},
		&workorderEntity.WorkOrderProcess{},
		&workorderEntity.DispatchRecord{},
		&workorderEntity.ProcessLog{},
		&reportEntity.Report{},
		&reportingEntity.WorkTimeRollup{},
		&reportingEntity.WorkOrderProductRollup{},
		&systemEntity.SyncLog{},
		&systemEntity.ScheduledTask{},
		&systemEntity.AutoApprovalRule{},
		&systemEntity.TaskLock{},
		&systemEntity.OperationLog{},
	}
}

// AutoMigrate creates or updates every table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
