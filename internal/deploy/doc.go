// Package deploy sequences a documentation deployment: build the site, open
// the deploy-user and privileged sessions, prepare the target directory, copy
// the output with scp and hand the files to the serving account.
//
// Each step is a named stage. Stages run strictly in order and the first
// failure stops the run; errors leaving the package are ClassifiedErrors
// tagged with the stage that produced them.
package deploy
