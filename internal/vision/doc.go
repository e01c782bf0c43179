// Package vision talks to the external fire detection model.
//
// The model runs as a separate inference service. HTTPDetector uploads the
// image as multipart form data and decodes the boxes it returns.
package vision
