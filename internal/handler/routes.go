package handler

import "net/http"

// Register 注册排班和统计API
func Register(mux *http.ServeMux, plans *PlanHandler) {
	mux.HandleFunc("POST /api/v1/plan/generate", plans.Generate)
	mux.HandleFunc("POST /api/v1/plan/validate", plans.Validate)

	// 按周排班（需要数据库）
	mux.HandleFunc("POST /api/v1/weeks/{monday}/plan", plans.GenerateWeek)
	mux.HandleFunc("GET /api/v1/weeks/{monday}/runs/latest", plans.LatestRun)

	mux.HandleFunc("POST /api/v1/stats/coverage", GetCoverageHandler)
	mux.HandleFunc("POST /api/v1/stats/workload", GetWorkloadHandler)
}

// RegisterData 注册员工、需求预测和班次维护API
func RegisterData(mux *http.ServeMux, data *DataHandler) {
	mux.HandleFunc("GET /api/v1/employees", data.ListEmployees)
	mux.HandleFunc("POST /api/v1/employees", data.CreateEmployee)
	mux.HandleFunc("PUT /api/v1/employees/{id}", data.UpdateEmployee)
	mux.HandleFunc("DELETE /api/v1/employees/{id}", data.DeleteEmployee)

	mux.HandleFunc("PUT /api/v1/weeks/{monday}/forecast", data.PutForecast)
	mux.HandleFunc("GET /api/v1/weeks/{monday}/shifts", data.ListShifts)
	mux.HandleFunc("PUT /api/v1/weeks/{monday}/shifts", data.PutShift)
	mux.HandleFunc("DELETE /api/v1/weeks/{monday}/plan", data.ClearPlan)
}
