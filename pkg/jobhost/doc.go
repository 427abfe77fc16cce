// Package jobhost plugs the jobs engine into a web host.
//
// Register the engine services first, then mount the dashboard and start a
// server once the application is built:
//
//	services := hosting.NewServiceCollection()
//	jobhost.AddJobs(services, func(c *jobs.GlobalConfiguration) {
//	    c.UseStorage(storage).Handle("email.send", sendEmail)
//	})
//
//	app := hosting.New(services)
//	jobhost.UseDashboard(app, jobhost.DefaultDashboardPath)
//	jobhost.UseServer(app)
//
// The configuration callback runs once per process, whichever of UseDashboard
// or UseServer is called first.
package jobhost
